package core

import (
	"errors"
	"strings"
	"sync"

	"goadc/protocol"
)

// CommandHandler decodes its arguments from r and runs the command.
type CommandHandler func(r *protocol.Reader) error

// Command is one registered message. Responses have no handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // full dictionary format, e.g. "adc_start group=%hu"
	Handler CommandHandler
}

// CommandRegistry numbers commands and responses in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command
	byName   map[string]uint16
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{byName: make(map[string]uint16)}
}

// Register adds a command. Registering a known name returns its ID.
func (r *CommandRegistry) Register(format string, handler CommandHandler) uint16 {
	name, _, _ := strings.Cut(format, " ")
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byName[name]; ok {
		return id
	}
	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{ID: id, Name: name, Format: format, Handler: handler})
	r.byName[name] = id
	return id
}

// RegisterResponse adds a device-to-host message.
func (r *CommandRegistry) RegisterResponse(format string) uint16 {
	return r.Register(format, nil)
}

func (r *CommandRegistry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs command id. It has the shape of a protocol.Handler.
func (r *CommandRegistry) Dispatch(id uint16, rd *protocol.Reader) error {
	r.mu.RLock()
	var cmd *Command
	if int(id) < len(r.commands) {
		cmd = r.commands[id]
	}
	r.mu.RUnlock()
	if cmd == nil || cmd.Handler == nil {
		return errors.New("unknown command id " + itoa(int(id)))
	}
	return cmd.Handler(rd)
}

// each visits all messages in ID order.
func (r *CommandRegistry) each(fn func(c *Command)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.commands {
		fn(c)
	}
}
