//go:build !no_automation

package automation

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"curtain-bridge/internal/curtain"
)

// registerCurtainModule registers the `curtain` global table in a Lua state.
func registerCurtainModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()

	mod.RawSetString("on", L.NewFunction(func(L *lua.LState) int {
		return curtainOn(L, vm)
	}))
	mod.RawSetString("open", L.NewFunction(func(L *lua.LState) int {
		return curtainCommand(L, e, "open", e.ctrl.Open)
	}))
	mod.RawSetString("close", L.NewFunction(func(L *lua.LState) int {
		return curtainCommand(L, e, "close", e.ctrl.Close)
	}))
	mod.RawSetString("stop", L.NewFunction(func(L *lua.LState) int {
		return curtainCommand(L, e, "stop", e.ctrl.Stop)
	}))
	mod.RawSetString("set_position", L.NewFunction(func(L *lua.LState) int {
		return curtainSetPosition(L, e)
	}))
	mod.RawSetString("state", L.NewFunction(func(L *lua.LState) int {
		return curtainState(L, e)
	}))
	mod.RawSetString("after", L.NewFunction(func(L *lua.LState) int {
		return curtainAfter(L, vm, e)
	}))
	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		e.logger.Info("script log", "msg", L.CheckString(1))
		return 0
	}))

	L.SetGlobal("curtain", mod)
}

const maxHandlersPerScript = 100

// curtain.on(field, endpoint, callback); field "*" and endpoint 0 match any.
func curtainOn(L *lua.LState, vm *scriptVM) int {
	h := luaEventHandler{
		field:    L.CheckString(1),
		endpoint: L.CheckInt(2),
		fn:       L.CheckFunction(3),
	}

	vm.mu.Lock()
	if len(vm.handlers) >= maxHandlersPerScript {
		vm.mu.Unlock()
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	vm.mu.Unlock()

	return 0
}

// curtain.open/close/stop(endpoint) returns true when the batch was queued.
func curtainCommand(L *lua.LState, e *Engine, op string, fn func(int) error) int {
	ep := L.CheckInt(1)
	if err := fn(ep); err != nil {
		e.logger.Warn("script command failed", "op", op, "endpoint", ep, "err", err)
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LTrue)
	return 1
}

// curtain.set_position(endpoint, position) with 0 = open, 100 = closed.
func curtainSetPosition(L *lua.LState, e *Engine) int {
	ep := L.CheckInt(1)
	pos := L.CheckInt(2)
	if err := e.ctrl.SetPosition(ep, pos); err != nil {
		e.logger.Warn("script command failed", "op", "set_position", "endpoint", ep, "err", err)
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LTrue)
	return 1
}

// curtain.state(endpoint) returns a table of the known fields, or nil.
func curtainState(L *lua.LState, e *Engine) int {
	st, ok := e.ctrl.State(L.CheckInt(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	if st.PositionKnown {
		t.RawSetString("position", lua.LNumber(st.UserPosition))
		t.RawSetString("device_position", lua.LNumber(st.DevicePosition))
	}
	if st.Shade != curtain.ShadeUnknown {
		t.RawSetString("state", lua.LString(st.Shade.String()))
	}
	if st.CalibrationState != curtain.CalibrationStateUnknown {
		t.RawSetString("calibration", lua.LString(st.CalibrationState.String()))
	}
	if st.Motor != curtain.MotorUnknown {
		t.RawSetString("motor_direction", lua.LString(st.Motor.String()))
	}
	if st.CalibrationTimeKnown {
		t.RawSetString("calibration_time", lua.LNumber(st.CalibrationTime.Seconds()))
	}
	L.Push(t)
	return 1
}

// curtain.after(seconds, callback)
func curtainAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}

		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{
				Fn:      fn,
				NRet:    0,
				Protect: true,
			}); err != nil {
				e.logger.Error("after callback error", "err", err)
			}
		}:
		default:
			e.logger.Warn("after: command channel full")
		}
	}()

	return 0
}
