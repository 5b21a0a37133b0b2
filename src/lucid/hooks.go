package lucid

import (
	"context"
)

type HookEvent string

const (
	BeforeCreate  HookEvent = "beforeCreate"
	AfterCreate   HookEvent = "afterCreate"
	BeforeUpdate  HookEvent = "beforeUpdate"
	AfterUpdate   HookEvent = "afterUpdate"
	BeforeSave    HookEvent = "beforeSave"
	AfterSave     HookEvent = "afterSave"
	BeforeDelete  HookEvent = "beforeDelete"
	AfterDelete   HookEvent = "afterDelete"
	AfterFind     HookEvent = "afterFind"
	AfterFetch    HookEvent = "afterFetch"
	AfterPaginate HookEvent = "afterPaginate"
)

// Hook runs against a single instance. A returned error aborts the operation.
type Hook func(ctx context.Context, m *Model) error

// FetchHook runs against a whole result set.
type FetchHook func(ctx context.Context, rows []*Model) error

func instanceEvent(event HookEvent) bool {
	switch event {
	case BeforeCreate, AfterCreate, BeforeUpdate, AfterUpdate, BeforeSave, AfterSave,
		BeforeDelete, AfterDelete, AfterFind:
		return true
	}
	return false
}

func resultSetEvent(event HookEvent) bool {
	return event == AfterFetch || event == AfterPaginate
}

// AddHook registers fn for an instance event. Hooks run in registration order.
func (t *ModelType) AddHook(event HookEvent, fn Hook) error {
	if !instanceEvent(event) {
		return invalidParameter("Invalid hook event {%s}", event)
	}
	t.hooks[event] = append(t.hooks[event], fn)
	return nil
}

// AddFetchHook registers fn for afterFetch or afterPaginate.
func (t *ModelType) AddFetchHook(event HookEvent, fn FetchHook) error {
	if !resultSetEvent(event) {
		return invalidParameter("Invalid hook event {%s}", event)
	}
	t.fetchHooks[event] = append(t.fetchHooks[event], fn)
	return nil
}

func (t *ModelType) runHooks(ctx context.Context, event HookEvent, m *Model) error {
	for _, fn := range t.hooks[event] {
		if err := fn(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (t *ModelType) runFetchHooks(ctx context.Context, event HookEvent, rows []*Model) error {
	for _, fn := range t.fetchHooks[event] {
		if err := fn(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}
