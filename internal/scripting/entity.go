package scripting

import (
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ScriptEntity forwards Update and Render to a Lua table. dt reaches Lua as
// seconds. A script that raises an error is logged once and disabled; the
// rest of the loop keeps running.
type ScriptEntity struct {
	name   string
	engine *Engine
	self   *lua.LTable
	update *lua.LFunction
	render *lua.LFunction
	failed bool
}

func (s *ScriptEntity) Name() string { return s.name }

// Failed reports whether the script has been disabled by an error.
func (s *ScriptEntity) Failed() bool { return s.failed }

func (s *ScriptEntity) Update(dt time.Duration) {
	if s.failed {
		return
	}
	if err := s.engine.call(s.update, s.self, lua.LNumber(dt.Seconds())); err != nil {
		s.fail("update", err)
	}
}

func (s *ScriptEntity) Render() {
	if s.failed || s.render == nil {
		return
	}
	if err := s.engine.call(s.render, s.self); err != nil {
		s.fail("render", err)
	}
}

func (s *ScriptEntity) fail(phase string, err error) {
	s.failed = true
	s.engine.log.Error("lua entity disabled",
		zap.String("entity", s.name),
		zap.String("phase", phase),
		zap.Error(err))
}

// Number reads a numeric field of the script's table.
func (s *ScriptEntity) Number(field string) (float64, bool) {
	n, ok := s.self.RawGetString(field).(lua.LNumber)
	return float64(n), ok
}
