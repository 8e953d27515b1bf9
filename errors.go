package portals

import "errors"

var (
	// ErrMissingCapability: an entity reached a portal path without the
	// capability it needs, e.g. a trigger exit for a non-traveller.
	ErrMissingCapability = errors.New("missing capability")
	// ErrUnpairedPortal: link-dependent work requested on an unlinked portal.
	ErrUnpairedPortal = errors.New("portal is not linked")
	ErrUnknownPortal  = errors.New("unknown portal")
	ErrNotTraveller   = errors.New("entity is not a traveller")
	ErrUnknownAsset   = errors.New("unknown asset")
	ErrInvalidScene   = errors.New("invalid scene")
)
