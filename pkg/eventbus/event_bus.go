// Package eventbus dispatches in-process events to subscribers chosen by their
// function signature.
package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

type EventBus interface {
	Publish(args ...any)
	PublishE(args ...any) error
	Subscribe(handler any)
	Unsubscribe(handler any)
	SubscribersCount() int
}

var (
	ErrNoSubscribers        = errors.New("eventbus: no matching subscribers")
	ErrInvalidHandlerReturn = errors.New("eventbus: invalid handler return signature")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type publisher struct {
	log *logrus.Logger

	mu       sync.RWMutex
	handlers []any
}

func NewEventPublisher(log *logrus.Logger) EventBus {
	return &publisher{log: log}
}

// MatchSignature reports whether handler can be called with args. Interface parameters
// match any implementation; nil matches interface and pointer parameters.
func MatchSignature(handler any, args []any) bool {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func || t.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		param := t.In(i)
		if arg == nil {
			if param.Kind() != reflect.Interface && param.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		argType := reflect.TypeOf(arg)
		if param.Kind() == reflect.Interface {
			if !argType.Implements(param) {
				return false
			}
			continue
		}
		if !argType.AssignableTo(param) {
			return false
		}
	}
	return true
}

func (p *publisher) matching(args []any) []any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []any
	for _, h := range p.handlers {
		if MatchSignature(h, args) {
			out = append(out, h)
		}
	}
	return out
}

func call(handler any, args []any) []reflect.Value {
	v := reflect.ValueOf(handler)
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			in[i] = reflect.Zero(v.Type().In(i))
			continue
		}
		in[i] = reflect.ValueOf(arg)
	}
	return v.Call(in)
}

// Publish calls every matching handler. Handler errors and panics are logged, never returned.
func (p *publisher) Publish(args ...any) {
	if err := p.PublishE(args...); err != nil && p.log != nil {
		p.log.WithError(err).Warn("eventbus: publish")
	}
}

// PublishE calls every matching handler and joins their errors. A panicking handler does
// not stop the others.
func (p *publisher) PublishE(args ...any) error {
	handlers := p.matching(args)
	if len(handlers) == 0 {
		return ErrNoSubscribers
	}
	var errs []error
	for _, h := range handlers {
		if err := p.invoke(h, args); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *publisher) invoke(handler any, args []any) (err error) {
	name := reflect.TypeOf(handler).String()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventbus: handler %s panicked: %v", name, r)
		}
	}()
	out := call(handler, args)
	switch {
	case len(out) == 0:
		return nil
	case len(out) != 1 || out[0].Type() != errorType:
		return fmt.Errorf("handler %s: %w", name, ErrInvalidHandlerReturn)
	case out[0].IsNil():
		return nil
	default:
		return out[0].Interface().(error)
	}
}

func (p *publisher) Subscribe(handler any) {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func {
		panic("eventbus: handler must be a function")
	}
	if t.NumOut() > 1 || (t.NumOut() == 1 && t.Out(0) != errorType) {
		panic("eventbus: handler may only return an error")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handler)
}

// Unsubscribe removes handler. Functions are compared by code pointer, so closures created by
// the same literal are indistinguishable.
func (p *publisher) Unsubscribe(handler any) {
	target := reflect.ValueOf(handler).Pointer()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, h := range p.handlers {
		if reflect.ValueOf(h).Pointer() == target {
			p.handlers = append(p.handlers[:i], p.handlers[i+1:]...)
			return
		}
	}
}

func (p *publisher) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers)
}
