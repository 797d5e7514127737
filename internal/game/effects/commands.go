package effects

import (
	"context"
	"fmt"
	"strings"

	"github.com/kesa0v0/WeimarPort/internal/game/board"
	"github.com/kesa0v0/WeimarPort/internal/game/faction"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
)

func (in *Interpreter) dispatchTable() map[script.Command]handler {
	return map[script.Command]handler{
		script.CmdPlaceThreatMarker:       in.placeThreatMarker,
		script.CmdPlacePartyBases:         in.placePartyBase,
		script.CmdPlaceParliamentSeats:    in.placeParliamentSeat,
		script.CmdReinforceUnit:           in.reinforceUnit,
		script.CmdPlaceUnit:               in.placeUnit,
		script.CmdModifyVp:                in.modifyVp,
		script.CmdModifyReserve:           in.modifyReserve,
		script.CmdMoveTrack:               in.moveTrack,
		script.CmdPlaceIssueMarker:        in.placeIssueMarker,
		script.CmdChangeMinorPartyControl: in.changeMinorPartyControl,
		script.CmdDissolveUnit:            in.dissolveUnit,
		script.CmdPlaceFlag:               in.placeFlag,
		script.CmdConditional:             in.emptyBranch,
		script.CmdPlayerChoice:            in.emptyBranch,
	}
}

// emptyBranch handles a structural node that carries neither a condition
// nor options.
func (in *Interpreter) emptyBranch(_ context.Context, x *execution) error {
	return fmt.Errorf("%w: %s has nothing to branch on", ErrMissingReference, x.node.Command)
}

func (in *Interpreter) publish(evt rules.Event) {
	if in.state.Bus != nil {
		in.state.Bus.Publish(evt)
	}
}

// placeThreatMarker moves one unplaced marker of dataId to the location.
func (in *Interpreter) placeThreatMarker(ctx context.Context, x *execution) error {
	party, err := faction.ParseOptional(x.node.Args.PartyID)
	if err != nil {
		return err
	}
	dest, err := x.resolve(ctx, party, "")
	if err != nil {
		return err
	}
	marker, ok := in.state.Registry.Available(board.KindMarker, x.node.Args.DataID)
	if !ok {
		return fmt.Errorf("%w: no %s marker available", ErrMissingReference, x.node.Args.DataID)
	}
	return in.state.Registry.Move(marker.ID(), dest)
}

// placePartyBase places one base of partyId, evicting another party's base
// when the city is full. targetPartyId names the party that must give way.
func (in *Interpreter) placePartyBase(ctx context.Context, x *execution) error {
	party, err := x.party()
	if err != nil {
		return err
	}
	dest, err := x.resolve(ctx, party, "")
	if err != nil {
		return err
	}
	target, err := faction.ParseOptional(x.node.Args.TargetPartyID)
	if err != nil {
		return err
	}
	if board.IsCityID(dest) {
		if err := in.makeRoom(ctx, dest, party, target); err != nil {
			return err
		}
	}
	reg := in.state.Registry
	if base, ok := reg.Find(board.ReserveID(party), board.KindBase, ""); ok {
		return reg.Move(base.ID(), dest)
	}
	base := board.NewBase(reg.NextID("base_"+strings.ToLower(string(party))), party)
	return reg.SpawnInto(base, dest)
}

// placeParliamentSeat adds one seat of partyId to parliament.
func (in *Interpreter) placeParliamentSeat(ctx context.Context, x *execution) error {
	party, err := x.party()
	if err != nil {
		return err
	}
	dest, err := x.resolve(ctx, party, board.ParliamentID)
	if err != nil {
		return err
	}
	reg := in.state.Registry
	seat := board.NewSeat(reg.NextID("seat_"+strings.ToLower(string(party))), party)
	return reg.SpawnInto(seat, dest)
}

func (in *Interpreter) unitType(dataID string) (*board.UnitType, error) {
	ut, ok := in.state.UnitTypes[board.NormalizeDataID(dataID)]
	if !ok {
		return nil, fmt.Errorf("%w: unit type %q", ErrMissingReference, dataID)
	}
	return ut, nil
}

// reinforceUnit creates one unit of dataId in the reserve of partyId.
func (in *Interpreter) reinforceUnit(ctx context.Context, x *execution) error {
	ut, err := in.unitType(x.node.Args.DataID)
	if err != nil {
		return err
	}
	party, err := faction.ParseOptional(x.node.Args.PartyID)
	if err != nil {
		return err
	}
	if party == faction.None {
		party = ut.Affiliation
	}
	dest, err := x.resolve(ctx, party, board.ReserveID(party))
	if err != nil {
		return err
	}
	u := board.NewUnit(in.state.Registry.NextID("unit_"+strings.ToLower(ut.DataID)), ut)
	if err := in.state.Registry.SpawnInto(u, dest); err != nil {
		return err
	}
	if party != ut.Affiliation {
		_, err = in.state.Registry.SetController(u.ID(), party)
	}
	return err
}

// placeUnit moves instanceId, or the first reserve unit of dataId, to the
// location. A missing reserve unit is created.
func (in *Interpreter) placeUnit(ctx context.Context, x *execution) error {
	reg := in.state.Registry
	args := x.node.Args

	var unit board.Entity
	if args.InstanceID != "" {
		e, ok := reg.Entity(args.InstanceID)
		if !ok || e.Kind() != board.KindUnit {
			return fmt.Errorf("%w: unit %q", ErrMissingReference, args.InstanceID)
		}
		unit = e
	}
	party, err := faction.ParseOptional(args.PartyID)
	if err != nil {
		return err
	}

	if unit == nil {
		ut, err := in.unitType(args.DataID)
		if err != nil {
			return err
		}
		if party == faction.None {
			party = ut.Affiliation
		}
		if e, ok := reg.Find(board.ReserveID(party), board.KindUnit, ut.DataID); ok {
			unit = e
		} else {
			u := board.NewUnit(reg.NextID("unit_"+strings.ToLower(ut.DataID)), ut)
			if err := reg.Spawn(u); err != nil {
				return err
			}
			unit = u
		}
	}
	if party == faction.None {
		party = unit.Faction()
	}
	dest, err := x.resolve(ctx, party, "")
	if err != nil {
		return err
	}
	if err := reg.Move(unit.ID(), dest); err != nil {
		return err
	}
	if party != unit.Faction() {
		_, err = reg.SetController(unit.ID(), party)
	}
	return err
}

// modifyVp adds value to the victory points of partyId.
func (in *Interpreter) modifyVp(_ context.Context, x *execution) error {
	party, err := x.party()
	if err != nil {
		return err
	}
	total, err := in.state.Factions.AddVictoryPoints(party, x.node.Args.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingReference, err)
	}
	evt := rules.NewEventWithAmount(rules.EventVPChanged, "", string(party), total)
	evt.Metadata["delta"] = fmt.Sprint(x.node.Args.Value)
	in.publish(evt)
	return nil
}

// modifyReserve adds value to the reserve points of partyId.
func (in *Interpreter) modifyReserve(_ context.Context, x *execution) error {
	party, err := x.party()
	if err != nil {
		return err
	}
	total, err := in.state.Factions.AddReservePoints(party, x.node.Args.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingReference, err)
	}
	evt := rules.NewEventWithAmount(rules.EventReserveChanged, "", string(party), total)
	evt.Metadata["delta"] = fmt.Sprint(x.node.Args.Value)
	in.publish(evt)
	return nil
}

// moveTrack shifts the track named by dataId by value.
func (in *Interpreter) moveTrack(_ context.Context, x *execution) error {
	track, err := board.ParseTrack(x.node.Args.DataID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingReference, err)
	}
	pos, err := in.state.Tracks.Move(track, x.node.Args.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingReference, err)
	}
	evt := rules.NewEventWithAmount(rules.EventTrackMoved, string(track), "", pos)
	evt.Metadata["delta"] = fmt.Sprint(x.node.Args.Value)
	in.publish(evt)
	return nil
}

// placeIssueMarker puts an issue marker of dataId on the opinion track,
// creating it on first use.
func (in *Interpreter) placeIssueMarker(ctx context.Context, x *execution) error {
	dataID := strings.TrimSpace(x.node.Args.DataID)
	if dataID == "" {
		return fmt.Errorf("%w: issue marker without dataId", ErrMissingReference)
	}
	party, err := faction.ParseOptional(x.node.Args.PartyID)
	if err != nil {
		return err
	}
	dest, err := x.resolve(ctx, party, board.OpinionTrackID)
	if err != nil {
		return err
	}
	reg := in.state.Registry
	if m, ok := reg.Available(board.KindMarker, dataID); ok {
		return reg.Move(m.ID(), dest)
	}
	name := board.NormalizeDataID(dataID)
	mt := &board.MarkerType{DataID: dataID, Category: board.MarkerIssue, Name: dataID, Faction: party}
	return reg.SpawnInto(board.NewMarker(reg.NextID("issue_"+name), mt), dest)
}

// changeMinorPartyControl hands the minor party dataId to partyId.
func (in *Interpreter) changeMinorPartyControl(_ context.Context, x *execution) error {
	minor, err := faction.Parse(x.node.Args.DataID)
	if err != nil {
		return err
	}
	party, err := x.party()
	if err != nil {
		return err
	}
	prev, err := in.state.Factions.SetMinorPartyController(minor, party)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingReference, err)
	}
	evt := rules.NewEvent(rules.EventMinorPartyControlChanged, string(minor), string(party))
	evt.From = string(prev)
	evt.To = string(party)
	in.publish(evt)
	return nil
}

// dissolveUnit sends instanceId to the disposed pool.
func (in *Interpreter) dissolveUnit(_ context.Context, x *execution) error {
	id := x.node.Args.InstanceID
	e, ok := in.state.Registry.Entity(id)
	if !ok || e.Kind() != board.KindUnit {
		return fmt.Errorf("%w: unit %q", ErrMissingReference, id)
	}
	return in.state.Registry.Move(id, board.DisposedID)
}

// placeFlag adds one flag of flagType.
func (in *Interpreter) placeFlag(_ context.Context, x *execution) error {
	flagType := strings.TrimSpace(x.node.Args.FlagType)
	if flagType == "" {
		return fmt.Errorf("%w: flag without flagType", ErrMissingReference)
	}
	total := in.state.Flags.Add(flagType, 1)
	evt := rules.NewEventWithAmount(rules.EventFlagPlaced, flagType, x.node.Args.PartyID, total)
	in.publish(evt)
	return nil
}
