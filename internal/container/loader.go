package container

import "context"

// Loader resolves (name, uri) to a configuration text blob, per spec §6:
// for a container named N it is first called with (N, uri) to obtain the
// master instance-name -> type-name listing, then once per listed
// instance to obtain that instance's own configuration text. The text
// format is not constrained by the core — Parser interprets it.
type Loader interface {
	Load(ctx context.Context, name, uri string) (text string, found bool, err error)
}

// Saver persists a configuration text blob under (name, uri). Optional —
// Container keeps the Saver installed by SetConfig but does not call it
// itself.
type Saver interface {
	Save(ctx context.Context, name, uri, text string) error
}

// Parser converts a loader's text blob into a flat key-value map, used
// both for the master instance-name -> type-name listing and for each
// instance's own configuration.
type Parser interface {
	Parse(text string) (map[string]string, error)
}
