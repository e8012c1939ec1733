package handler

import "sort"

// Registry holds the commands and event handlers found by Discover.
type Registry struct {
	commands map[string]*Command
	events   []*EventHandler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// AddCommand registers cmd under its name and returns the command it replaced, if any.
func (r *Registry) AddCommand(cmd *Command) (replaced *Command) {
	replaced = r.commands[cmd.Data.Name]
	r.commands[cmd.Data.Name] = cmd
	return replaced
}

// AddEvent appends an event handler.
func (r *Registry) AddEvent(ev *EventHandler) {
	r.events = append(r.events, ev)
}

// Command returns the command registered under name.
func (r *Registry) Command(name string) (*Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

// Commands returns all commands sorted by name.
func (r *Registry) Commands() []*Command {
	out := make([]*Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Data.Name < out[j].Data.Name })
	return out
}

// CommandCount returns the number of distinct command names.
func (r *Registry) CommandCount() int { return len(r.commands) }

// Events returns every event handler in registration order.
func (r *Registry) Events() []*EventHandler {
	return append([]*EventHandler(nil), r.events...)
}

// EventsFor returns the handlers registered for name, in registration order.
func (r *Registry) EventsFor(name string) []*EventHandler {
	var out []*EventHandler
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
