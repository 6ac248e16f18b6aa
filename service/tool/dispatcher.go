package tool

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/pkg/errors"
	"github.com/viant/structology/conv"

	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/policy"
	"github.com/plenum-ai/plenum/service/approval"
)

// Dispatch outcome sentinels, used by callers to distinguish governance
// outcomes from execution failures.
var (
	ErrDenied   = errors.New("action blocked by policy")
	ErrRejected = errors.New("action rejected")
)

const defaultApprovalTimeout = 5 * time.Minute

// Dispatcher executes parked tool calls, enforcing the session policy and
// parking calls on the approval service when the policy asks for a human
// decision.
type Dispatcher struct {
	registry        *Registry
	approvals       approval.Service
	converter       *conv.Converter
	approvalTimeout time.Duration
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithApprovalService attaches the approval service used to park ask-mode
// calls.
func WithApprovalService(svc approval.Service) Option {
	return func(d *Dispatcher) {
		d.approvals = svc
	}
}

// WithApprovalTimeout bounds how long a parked call waits for a decision.
func WithApprovalTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.approvalTimeout = timeout
	}
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, opts ...Option) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("registry was nil")
	}
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true

	d := &Dispatcher{
		registry:        registry,
		converter:       conv.NewConverter(options),
		approvalTimeout: defaultApprovalTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch resolves and executes the call, filling call.Result on success and
// call.Error on failure. The returned error mirrors call.Error so callers can
// branch on the sentinels above.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID, agent string, call *chat.ToolCall) error {
	err := d.dispatch(ctx, sessionID, agent, call)
	if err != nil {
		call.Error = err.Error()
	}
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, sessionID, agent string, call *chat.ToolCall) error {
	service, signature := d.registry.Resolve(call.Action)
	if service == nil {
		return errors.Errorf("tool %v not found", call.Action)
	}
	action := ActionName(service.Name(), signature.Name)

	pol := policy.FromContext(ctx)
	if !pol.IsAllowed(action) {
		return errors.Wrap(ErrDenied, action)
	}
	if pol.RequiresApproval(action) {
		if err := d.awaitApproval(ctx, sessionID, agent, action, call); err != nil {
			return err
		}
	}

	method, err := service.Method(signature.Name)
	if err != nil {
		return err
	}

	input := newInstance(signature.Input)
	if len(call.Args) > 0 && input != nil {
		var args map[string]interface{}
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return errors.Wrapf(err, "invalid arguments for %v", action)
		}
		if err := d.converter.Convert(args, input); err != nil {
			return errors.Wrapf(err, "invalid arguments for %v", action)
		}
	}
	output := newInstance(signature.Output)

	if err := method(ctx, input, output); err != nil {
		return err
	}
	if output != nil {
		if call.Result, err = json.Marshal(output); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) awaitApproval(ctx context.Context, sessionID, agent, action string, call *chat.ToolCall) error {
	if d.approvals == nil {
		return errors.Wrap(ErrDenied, "no approval service configured")
	}
	req := &approval.Request{
		ID:        call.ID,
		SessionID: sessionID,
		CallID:    call.ID,
		Agent:     agent,
		Action:    action,
		Args:      call.Args,
	}
	if err := d.approvals.RequestApproval(ctx, req); err != nil {
		return err
	}
	decision, err := approval.WaitForDecision(ctx, d.approvals, req.ID, d.approvalTimeout)
	if err != nil {
		return errors.Wrapf(err, "approval for %v", action)
	}
	if !decision.Approved {
		if decision.Reason != "" {
			return errors.Wrap(ErrRejected, decision.Reason)
		}
		return ErrRejected
	}
	return nil
}

func newInstance(t reflect.Type) interface{} {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.New(t).Interface()
}
