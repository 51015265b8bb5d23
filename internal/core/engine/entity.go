package engine

import "time"

// Entity is the interface every simulated object implements.
// Update advances the entity's own state by exactly dt.
type Entity interface {
	Update(dt time.Duration)
}

// Renderer is the optional draw capability. Render draws the current state;
// it never advances anything. Entities that draw through a handle (a screen,
// a canvas) receive it when they are constructed.
type Renderer interface {
	Render()
}

// EntityFunc adapts a plain function to the Entity interface.
type EntityFunc func(dt time.Duration)

func (f EntityFunc) Update(dt time.Duration) { f(dt) }
