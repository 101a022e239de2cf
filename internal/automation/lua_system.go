//go:build !no_automation

package automation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// registerSystemModule registers the `system` global table in a Lua state.
func registerSystemModule(L *lua.LState, e *Engine) {
	mod := L.NewTable()

	mod.RawSetString("datetime", L.NewFunction(func(L *lua.LState) int {
		return systemDatetime(L, e.now())
	}))
	mod.RawSetString("time_between", L.NewFunction(func(L *lua.LState) int {
		return systemTimeBetween(L, e.now())
	}))
	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		return systemLog(L, e)
	}))

	L.SetGlobal("system", mod)
}

// system.datetime(component)
func systemDatetime(L *lua.LState, now time.Time) int {
	component := L.CheckString(1)
	switch component {
	case "hour":
		L.Push(lua.LNumber(now.Hour()))
	case "minute":
		L.Push(lua.LNumber(now.Minute()))
	case "weekday":
		L.Push(lua.LNumber(now.Weekday()))
	case "day":
		L.Push(lua.LNumber(now.Day()))
	case "month":
		L.Push(lua.LNumber(now.Month()))
	case "timestamp":
		L.Push(lua.LNumber(now.Unix()))
	case "time_str":
		L.Push(lua.LString(now.Format("15:04")))
	default:
		L.ArgError(1, "unknown component: "+component)
		return 0
	}
	return 1
}

// system.time_between(from, to) takes hours (22) or "HH:MM" strings
// ("21:30") and wraps past midnight when from > to.
func systemTimeBetween(L *lua.LState, now time.Time) int {
	from, err := minuteOfDay(L.CheckAny(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	to, err := minuteOfDay(L.CheckAny(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	cur := now.Hour()*60 + now.Minute()

	var in bool
	if from <= to {
		in = cur >= from && cur < to
	} else {
		in = cur >= from || cur < to
	}
	L.Push(lua.LBool(in))
	return 1
}

func minuteOfDay(v lua.LValue) (int, error) {
	switch val := v.(type) {
	case lua.LNumber:
		h := int(val)
		if h < 0 || h > 24 {
			return 0, fmt.Errorf("hour %d out of range", h)
		}
		return h * 60, nil
	case lua.LString:
		hs, ms, ok := strings.Cut(string(val), ":")
		if !ok {
			return 0, fmt.Errorf("time %q is not HH:MM", string(val))
		}
		h, err1 := strconv.Atoi(hs)
		m, err2 := strconv.Atoi(ms)
		if err1 != nil || err2 != nil || h < 0 || h > 24 || m < 0 || m > 59 {
			return 0, fmt.Errorf("time %q is not HH:MM", string(val))
		}
		return h*60 + m, nil
	}
	return 0, fmt.Errorf("expected hour or \"HH:MM\", got %s", v.Type())
}

// system.log(level, msg)
func systemLog(L *lua.LState, e *Engine) int {
	level := L.CheckString(1)
	msg := L.CheckString(2)

	switch level {
	case "debug":
		e.logger.Debug("script log", "msg", msg)
	case "warn":
		e.logger.Warn("script log", "msg", msg)
	case "error":
		e.logger.Error("script log", "msg", msg)
	default:
		e.logger.Info("script log", "msg", msg)
	}
	return 0
}
