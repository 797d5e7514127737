package effects

import (
	"context"
	"fmt"
	"strings"

	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// LuaPredicate compiles a Lua chunk defining
//
//	function check(cond, state) ... end
//
// into a Predicate. cond carries the condition fields (type, partyId,
// markerId, location); state exposes read-only queries over the game:
//
//	state.inGovernment(party)      -> bool
//	state.basesIn(city, party)     -> number
//	state.markersIn(container, id) -> number
//	state.victoryPoints(party)     -> number
//	state.track(name)              -> number
//	state.controller(minor)        -> string
//
// Every evaluation runs in a fresh interpreter with only the base, table,
// string and math libraries. Loading code from files is disabled.
func LuaPredicate(name, source string, state State) (Predicate, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("lua predicate %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("lua predicate %s: %w", name, err)
	}

	return func(ctx context.Context, cond script.Condition) (bool, error) {
		L := lua.NewState(lua.Options{SkipOpenLibs: true})
		defer L.Close()
		L.SetContext(ctx)

		if err := openSafeLibs(L); err != nil {
			return false, err
		}
		L.Push(L.NewFunctionFromProto(proto))
		if err := L.PCall(0, lua.MultRet, nil); err != nil {
			return false, fmt.Errorf("lua predicate %s: %w", name, err)
		}
		check, ok := L.GetGlobal("check").(*lua.LFunction)
		if !ok {
			return false, fmt.Errorf("%w: lua predicate %s does not define check", ErrUnknownCondition, name)
		}
		if err := L.CallByParam(lua.P{Fn: check, NRet: 1, Protect: true}, conditionTable(L, cond), stateTable(L, state)); err != nil {
			return false, fmt.Errorf("lua predicate %s: %w", name, err)
		}
		ret := L.Get(-1)
		L.Pop(1)
		return lua.LVAsBool(ret), nil
	}, nil
}

func openSafeLibs(L *lua.LState) error {
	libs := []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return err
		}
	}
	for _, fn := range []string{"dofile", "loadfile", "require", "module"} {
		L.SetGlobal(fn, lua.LNil)
	}
	return nil
}

func conditionTable(L *lua.LState, cond script.Condition) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "type", lua.LString(cond.Type))
	L.SetField(t, "partyId", lua.LString(cond.PartyID))
	L.SetField(t, "markerId", lua.LString(cond.MarkerID))
	if cond.Location != nil {
		loc := L.NewTable()
		L.SetField(loc, "type", lua.LString(cond.Location.Type))
		L.SetField(loc, "name", lua.LString(cond.Location.Name))
		L.SetField(t, "location", loc)
	}
	return t
}

func stateTable(L *lua.LState, state State) *lua.LTable {
	t := L.NewTable()
	party := func(L *lua.LState, n int) faction.Type {
		f, err := faction.Parse(L.CheckString(n))
		if err != nil {
			L.ArgError(n, err.Error())
		}
		return f
	}
	container := func(L *lua.LState, n int) string {
		name := L.CheckString(n)
		if c, ok := state.Registry.FindCity(name); ok {
			return c.ID
		}
		return name
	}

	L.SetField(t, "inGovernment", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(state.Factions.InGovernment(party(L, 1))))
		return 1
	}))
	L.SetField(t, "basesIn", L.NewFunction(func(L *lua.LState) int {
		id := container(L, 1)
		L.Push(lua.LNumber(len(state.Registry.BasesIn(id, party(L, 2)))))
		return 1
	}))
	L.SetField(t, "markersIn", L.NewFunction(func(L *lua.LState) int {
		id := container(L, 1)
		want := board.NormalizeDataID(L.OptString(2, ""))
		n := 0
		for _, e := range state.Registry.EntitiesIn(id) {
			if e.Kind() == board.KindMarker && (want == "" || board.NormalizeDataID(e.DataID()) == want) {
				n++
			}
		}
		L.Push(lua.LNumber(n))
		return 1
	}))
	L.SetField(t, "victoryPoints", L.NewFunction(func(L *lua.LState) int {
		st, _ := state.Factions.State(party(L, 1))
		L.Push(lua.LNumber(st.VictoryPoints))
		return 1
	}))
	L.SetField(t, "track", L.NewFunction(func(L *lua.LState) int {
		tr, err := board.ParseTrack(L.CheckString(1))
		if err != nil {
			L.ArgError(1, err.Error())
		}
		L.Push(lua.LNumber(state.Tracks.Position(tr)))
		return 1
	}))
	L.SetField(t, "controller", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(state.Factions.MinorPartyController(party(L, 1))))
		return 1
	}))
	return t
}
