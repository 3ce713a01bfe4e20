package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"shopbot/internal/state"
)

// HandlerFunc handles one routed update
type HandlerFunc func(ctx context.Context, u *Update) error

// Stage names a step of the dispatch table, in precedence order
type Stage string

const (
	StageCommand      Stage = "command"
	StageContinuation Stage = "continuation"
	StageCallback     Stage = "callback"
	StageMenu         Stage = "menu"
	StageFallback     Stage = "fallback"
)

// Match is the outcome of routing one update
type Match struct {
	Stage   Stage
	Route   string
	Handler HandlerFunc
}

type prefixRoute struct {
	prefix  string
	handler HandlerFunc
}

type stage struct {
	name    Stage
	resolve func(ctx context.Context, u *Update) (*Match, error)
}

// Router maps an update to exactly one handler. Stages are evaluated in a
// fixed order and the first one that resolves wins:
//
//	command > continuation > callback (exact, then longest prefix) > menu > fallback
//
// Registering the same key twice panics, so a new route can never shadow an
// existing one without notice.
type Router struct {
	commands       map[string]HandlerFunc
	continuations  map[string]HandlerFunc
	callbacks      map[string]HandlerFunc
	prefixes       []prefixRoute
	menu           map[string]HandlerFunc
	unknownCommand HandlerFunc
	fallback       HandlerFunc

	states state.Store
	logger *zap.Logger
	stages []stage
}

// NewRouter creates an empty router. Continuations are kept in states.
func NewRouter(states state.Store, logger *zap.Logger) *Router {
	r := &Router{
		commands:      make(map[string]HandlerFunc),
		continuations: make(map[string]HandlerFunc),
		callbacks:     make(map[string]HandlerFunc),
		menu:          make(map[string]HandlerFunc),
		states:        states,
		logger:        logger,
	}
	r.stages = []stage{
		{StageCommand, r.matchCommand},
		{StageContinuation, r.matchContinuation},
		{StageCallback, r.matchCallback},
		{StageMenu, r.matchMenu},
		{StageFallback, r.matchFallback},
	}
	return r
}

func mustAdd(routes map[string]HandlerFunc, kind, key string, h HandlerFunc) {
	if key == "" {
		panic(fmt.Sprintf("bot: empty %s route", kind))
	}
	if _, exists := routes[key]; exists {
		panic(fmt.Sprintf("bot: duplicate %s route %q", kind, key))
	}
	routes[key] = h
}

// Command registers a handler for /name
func (r *Router) Command(name string, h HandlerFunc) {
	mustAdd(r.commands, "command", strings.ToLower(strings.TrimPrefix(name, "/")), h)
}

// Continuation registers the handler run for a user's next message after
// a handler armed token with Await
func (r *Router) Continuation(token string, h HandlerFunc) {
	mustAdd(r.continuations, "continuation", token, h)
}

// Callback registers a handler for exact callback data
func (r *Router) Callback(data string, h HandlerFunc) {
	mustAdd(r.callbacks, "callback", data, h)
}

// CallbackPrefix registers a handler for callback data starting with prefix
func (r *Router) CallbackPrefix(prefix string, h HandlerFunc) {
	if prefix == "" {
		panic("bot: empty callback prefix route")
	}
	for _, p := range r.prefixes {
		if p.prefix == prefix {
			panic(fmt.Sprintf("bot: duplicate callback prefix route %q", prefix))
		}
	}
	r.prefixes = append(r.prefixes, prefixRoute{prefix: prefix, handler: h})
	// Longest first, so the most specific prefix wins
	sort.SliceStable(r.prefixes, func(i, j int) bool {
		return len(r.prefixes[i].prefix) > len(r.prefixes[j].prefix)
	})
}

// Menu registers a handler for a reply keyboard label
func (r *Router) Menu(label string, h HandlerFunc) {
	mustAdd(r.menu, "menu", label, h)
}

// UnknownCommand sets the handler for commands nobody registered
func (r *Router) UnknownCommand(h HandlerFunc) {
	r.unknownCommand = h
}

// Fallback sets the handler for messages no other stage claims
func (r *Router) Fallback(h HandlerFunc) {
	r.fallback = h
}

// Await arms a one-shot continuation for the user's next message,
// replacing any continuation already pending
func (r *Router) Await(ctx context.Context, userID int64, token string) error {
	if _, ok := r.continuations[token]; !ok {
		return fmt.Errorf("no continuation registered for %q", token)
	}
	return r.states.SetPending(ctx, userID, token)
}

// Cancel drops the user's pending continuation, if any
func (r *Router) Cancel(ctx context.Context, userID int64) error {
	return r.states.ClearPending(ctx, userID)
}

// Resolve picks the handler for u. Resolving consumes a pending continuation,
// so the returned handler must be run.
func (r *Router) Resolve(ctx context.Context, u *Update) (*Match, error) {
	for _, s := range r.stages {
		m, err := s.resolve(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", s.name, err)
		}
		if m != nil {
			return m, nil
		}
	}
	return &Match{Stage: StageFallback, Handler: noop}, nil
}

// Dispatch resolves u and runs the matched handler
func (r *Router) Dispatch(ctx context.Context, u *Update) (*Match, error) {
	m, err := r.Resolve(ctx, u)
	if err != nil {
		return nil, err
	}
	return m, m.Handler(ctx, u)
}

func (r *Router) matchCommand(ctx context.Context, u *Update) (*Match, error) {
	if !u.IsCommand() {
		return nil, nil
	}
	// Any command interrupts a pending conversation
	if err := r.states.ClearPending(ctx, u.UserID); err != nil {
		return nil, err
	}
	if h, ok := r.commands[u.Command]; ok {
		return &Match{Stage: StageCommand, Route: "/" + u.Command, Handler: h}, nil
	}
	h := r.unknownCommand
	if h == nil {
		h = noop
	}
	return &Match{Stage: StageCommand, Route: "unknown", Handler: h}, nil
}

func (r *Router) matchContinuation(ctx context.Context, u *Update) (*Match, error) {
	if u.Kind != KindMessage {
		return nil, nil
	}
	token, ok, err := r.states.TakePending(ctx, u.UserID)
	if err != nil || !ok {
		return nil, err
	}
	h, ok := r.continuations[token]
	if !ok {
		r.logger.Warn("Dropping continuation with no handler",
			zap.Int64("user_id", u.UserID),
			zap.String("token", token),
		)
		return nil, nil
	}
	return &Match{Stage: StageContinuation, Route: token, Handler: h}, nil
}

func (r *Router) matchCallback(ctx context.Context, u *Update) (*Match, error) {
	if u.Kind != KindCallback {
		return nil, nil
	}
	if h, ok := r.callbacks[u.CallbackData]; ok {
		return &Match{Stage: StageCallback, Route: u.CallbackData, Handler: h}, nil
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(u.CallbackData, p.prefix) {
			return &Match{Stage: StageCallback, Route: p.prefix, Handler: p.handler}, nil
		}
	}
	// Unknown buttons are acknowledged and ignored
	return &Match{Stage: StageCallback, Route: "unmatched", Handler: noop}, nil
}

func (r *Router) matchMenu(ctx context.Context, u *Update) (*Match, error) {
	if h, ok := r.menu[u.Text]; ok {
		return &Match{Stage: StageMenu, Route: u.Text, Handler: h}, nil
	}
	return nil, nil
}

func (r *Router) matchFallback(ctx context.Context, u *Update) (*Match, error) {
	h := r.fallback
	if h == nil {
		h = noop
	}
	return &Match{Stage: StageFallback, Route: "fallback", Handler: h}, nil
}

func noop(context.Context, *Update) error { return nil }
