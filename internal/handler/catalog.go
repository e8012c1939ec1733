package handler

import "sort"

// Catalog maps manifest action keys to compiled actions. Command and event
// actions live in separate namespaces.
type Catalog struct {
	commands map[string]CommandAction
	events   map[string]EventAction
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		commands: make(map[string]CommandAction),
		events:   make(map[string]EventAction),
	}
}

// RegisterCommand adds or replaces a command action. Nil actions are ignored.
func (c *Catalog) RegisterCommand(key string, fn CommandAction) *Catalog {
	if fn != nil {
		c.commands[key] = fn
	}
	return c
}

// RegisterEvent adds or replaces an event action. Nil actions are ignored.
func (c *Catalog) RegisterEvent(key string, fn EventAction) *Catalog {
	if fn != nil {
		c.events[key] = fn
	}
	return c
}

// Command looks up a command action.
func (c *Catalog) Command(key string) (CommandAction, bool) {
	fn, ok := c.commands[key]
	return fn, ok
}

// Event looks up an event action.
func (c *Catalog) Event(key string) (EventAction, bool) {
	fn, ok := c.events[key]
	return fn, ok
}

// Keys lists registered action keys, commands first, each group sorted.
func (c *Catalog) Keys() []string {
	var cmds, evs []string
	for k := range c.commands {
		cmds = append(cmds, k)
	}
	for k := range c.events {
		evs = append(evs, k)
	}
	sort.Strings(cmds)
	sort.Strings(evs)
	return append(cmds, evs...)
}
