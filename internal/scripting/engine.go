package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM shared by all script entities.
// Single-goroutine access only (the loop goroutine).
type Engine struct {
	vm   *lua.LState
	dir  string
	stop func()
	log  *zap.Logger
}

// NewEngine creates a Lua VM rooted at scriptsDir and loads the shared
// helpers in scriptsDir/lib. stop is exposed to scripts as stop(); it may be
// nil, in which case stop() only logs.
func NewEngine(scriptsDir string, stop func(), log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, dir: scriptsDir, stop: stop, log: log}
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))
	vm.SetGlobal("stop", vm.NewFunction(e.luaStop))

	if err := e.loadDir(filepath.Join(scriptsDir, "lib")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load lib scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// luaLog implements log(msg) for scripts.
func (e *Engine) luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	e.log.Info(msg, zap.String("source", "lua"))
	return 0
}

// luaStop implements stop() for scripts.
func (e *Engine) luaStop(L *lua.LState) int {
	if e.stop == nil {
		e.log.Warn("lua stop() called but no loop is attached")
		return 0
	}
	e.stop()
	return 0
}

// Entity loads file (relative to the scripts dir) and returns an entity
// driven by the table it returns. The table must have an update function;
// render is optional.
func (e *Engine) Entity(name, file string) (*ScriptEntity, error) {
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.dir, file)
	}
	fn, err := e.vm.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load script %s: %w", path, err)
	}
	e.vm.Push(fn)
	if err := e.vm.PCall(0, 1, nil); err != nil {
		return nil, fmt.Errorf("run script %s: %w", path, err)
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)

	self, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("script %s: returned %s, want table", path, ret.Type())
	}
	update, ok := self.RawGetString("update").(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("script %s: missing update function", path)
	}
	render, _ := self.RawGetString("render").(*lua.LFunction)
	self.RawSetString("name", lua.LString(name))

	return &ScriptEntity{
		name:   name,
		engine: e,
		self:   self,
		update: update,
		render: render,
	}, nil
}

// call invokes fn(self, args...) in protected mode.
func (e *Engine) call(fn *lua.LFunction, self *lua.LTable, args ...lua.LValue) error {
	return e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, append([]lua.LValue{self}, args...)...)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
