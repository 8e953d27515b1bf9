package portals

import (
	"fmt"
)

// SetLinked pairs p with other on both sides, clearing any previous partner
// of either first. nil or p itself unlinks.
func (p *Portal) SetLinked(other *Portal) {
	if other == p {
		other = nil
	}
	if p.linked == other && (other == nil || other.linked == p) {
		return
	}

	if p.linked != nil {
		p.linked.linked = nil
		p.linked = nil
	}
	if other == nil {
		return
	}
	if other.linked != nil {
		other.linked.linked = nil
	}
	p.linked = other
	other.linked = p
}

func (p *Portal) IsLinked() bool {
	return p.linked != nil
}

func (p *Portal) Linked() *Portal {
	return p.linked
}

// DisplayName decorates the name with the link target when display names
// are enabled. The stored name never changes.
func (p *Portal) DisplayName() string {
	if !p.displayNames {
		return p.name
	}
	if p.linked == nil {
		return fmt.Sprintf("%s (-> Unlinked)", p.name)
	}
	return fmt.Sprintf("%s (-> %s <-)", p.name, p.linked.name)
}

// Link pairs two portals. Clones follow the new pairing immediately.
func (w *PortalWorld) Link(cmd *Commands, a, b EntityId) error {
	pa, err := w.portal(a)
	if err != nil {
		return err
	}
	pb, err := w.portal(b)
	if err != nil {
		return err
	}

	affected := w.linkNeighbourhood(pa, pb)
	pa.SetLinked(pb)
	w.afterLinkChange(cmd, affected)
	return nil
}

// Unlink clears the pairing of a and its partner.
func (w *PortalWorld) Unlink(cmd *Commands, a EntityId) error {
	pa, err := w.portal(a)
	if err != nil {
		return err
	}
	affected := w.linkNeighbourhood(pa, nil)
	pa.SetLinked(nil)
	w.afterLinkChange(cmd, affected)
	return nil
}

func (w *PortalWorld) linkNeighbourhood(a, b *Portal) []*Portal {
	var res []*Portal
	for _, p := range []*Portal{a, a.linked, b} {
		if p != nil {
			res = append(res, p)
		}
	}
	if b != nil && b.linked != nil {
		res = append(res, b.linked)
	}
	return res
}

func (w *PortalWorld) afterLinkChange(cmd *Commands, affected []*Portal) {
	for _, p := range affected {
		w.logger.Debugf("portal link changed: %s", p.DisplayName())
		w.syncClones(cmd, p)
	}
}
