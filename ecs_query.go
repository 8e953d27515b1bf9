package portals

import (
	"reflect"
	"slices"
)

// TO get more queries:
//  1. Add QueryN and identifyComponentsN
//  2. Copy MapN-1() and extend it with the extra component
//  3. Add MakeQueryN so it is available in the user code
type Query1[A any] struct{ ecs *Ecs }
type Query2[A, B any] struct{ ecs *Ecs }
type Query3[A, B, C any] struct{ ecs *Ecs }
type Query4[A, B, C, D any] struct{ ecs *Ecs }

func MakeQuery1[A any](cmd *Commands) Query1[A]             { return Query1[A]{ecs: cmd.app.ecs} }
func MakeQuery2[A, B any](cmd *Commands) Query2[A, B]       { return Query2[A, B]{ecs: cmd.app.ecs} }
func MakeQuery3[A, B, C any](cmd *Commands) Query3[A, B, C] { return Query3[A, B, C]{ecs: cmd.app.ecs} }
func MakeQuery4[A, B, C, D any](cmd *Commands) Query4[A, B, C, D] {
	return Query4[A, B, C, D]{ecs: cmd.app.ecs}
}

// queryHit is one matching entity. Systems see entities in ascending id
// order so frame-to-frame behaviour does not depend on map iteration.
type queryHit struct {
	eid  EntityId
	arch *archetype
	row  row
}

// matchArchetypes collects every entity whose archetype carries all ids that
// are not listed in optional.
func (ecs *Ecs) matchArchetypes(ids []componentId, optional set[componentId]) []queryHit {
	var hits []queryHit
	for _, arch := range ecs.archetypes {
		matches := true
		for _, id := range ids {
			if _, ok := arch.componentData[id]; ok {
				continue
			}
			if _, ok := optional[id]; ok {
				continue
			}
			matches = false
			break
		}
		if !matches {
			continue
		}
		for eid, r := range arch.entities {
			hits = append(hits, queryHit{eid: eid, arch: arch, row: r})
		}
	}
	slices.SortFunc(hits, func(a, b queryHit) int {
		switch {
		case a.eid < b.eid:
			return -1
		case a.eid > b.eid:
			return 1
		}
		return 0
	})
	return hits
}

// column returns a pointer to the component at hit, or nil when the
// archetype lacks it (optional component).
func column[T any](hit queryHit, id componentId) *T {
	data, ok := hit.arch.componentData[id]
	if !ok {
		return nil
	}
	return &data.([]T)[hit.row]
}

func (q Query1[A]) Map(m func(EntityId, *A) bool, optionals ...any) {
	id1 := identifyComponents1[A](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, hit := range q.ecs.matchArchetypes([]componentId{id1}, opt) {
		if !m(hit.eid, column[A](hit, id1)) {
			return
		}
	}
}

func (q Query2[A, B]) Map(m func(EntityId, *A, *B) bool, optionals ...any) {
	id1, id2 := identifyComponents2[A, B](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, hit := range q.ecs.matchArchetypes([]componentId{id1, id2}, opt) {
		if !m(hit.eid, column[A](hit, id1), column[B](hit, id2)) {
			return
		}
	}
}

func (q Query3[A, B, C]) Map(m func(EntityId, *A, *B, *C) bool, optionals ...any) {
	id1, id2, id3 := identifyComponents3[A, B, C](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, hit := range q.ecs.matchArchetypes([]componentId{id1, id2, id3}, opt) {
		if !m(hit.eid, column[A](hit, id1), column[B](hit, id2), column[C](hit, id3)) {
			return
		}
	}
}

func (q Query4[A, B, C, D]) Map(m func(EntityId, *A, *B, *C, *D) bool, optionals ...any) {
	id1, id2, id3, id4 := identifyComponents4[A, B, C, D](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, hit := range q.ecs.matchArchetypes([]componentId{id1, id2, id3, id4}, opt) {
		if !m(hit.eid, column[A](hit, id1), column[B](hit, id2), column[C](hit, id3), column[D](hit, id4)) {
			return
		}
	}
}

// GetComponent returns a live pointer to entity's T, if it has one.
func GetComponent[T any](cmd *Commands, eid EntityId) (*T, bool) {
	var zero T
	v, ok := cmd.app.ecs.componentPtr(eid, reflect.TypeOf(zero))
	if !ok {
		return nil, false
	}
	return v.Interface().(*T), true
}

func HasComponent[T any](cmd *Commands, eid EntityId) bool {
	_, ok := GetComponent[T](cmd, eid)
	return ok
}

func identifyOptionals(ecs *Ecs, optionals ...any) set[componentId] {
	res := make(set[componentId], len(optionals))
	for _, o := range optionals {
		res[ecs.getComponentId(componentType(o))] = struct{}{}
	}
	return res
}

func identifyComponents1[A any](ecs *Ecs) componentId {
	var a A
	return ecs.getComponentId(reflect.TypeOf(a))
}

func identifyComponents2[A, B any](ecs *Ecs) (componentId, componentId) {
	var a A
	var b B
	return ecs.getComponentId(reflect.TypeOf(a)), ecs.getComponentId(reflect.TypeOf(b))
}

func identifyComponents3[A, B, C any](ecs *Ecs) (componentId, componentId, componentId) {
	var a A
	var b B
	var c C
	return ecs.getComponentId(reflect.TypeOf(a)), ecs.getComponentId(reflect.TypeOf(b)), ecs.getComponentId(reflect.TypeOf(c))
}

func identifyComponents4[A, B, C, D any](ecs *Ecs) (componentId, componentId, componentId, componentId) {
	var a A
	var b B
	var c C
	var d D
	return ecs.getComponentId(reflect.TypeOf(a)), ecs.getComponentId(reflect.TypeOf(b)), ecs.getComponentId(reflect.TypeOf(c)), ecs.getComponentId(reflect.TypeOf(d))
}
