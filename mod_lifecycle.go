package portals

// LifetimeComponent removes an entity and its children once TimeLeft
// (seconds) runs out.
type LifetimeComponent struct {
	TimeLeft float32
}

// LifecycleModule expires entities with a LifetimeComponent. Installed after
// PortalModule, expiring travellers are forgotten by every portal first.
type LifecycleModule struct{}

func (mod LifecycleModule) Install(app *App, cmd *Commands) {
	if _, ok := Resource[PortalWorld](app); ok {
		app.UseSystem(System(portalLifetimeSystem).InStage(PostUpdate))
		return
	}
	app.UseSystem(System(lifetimeSystem).InStage(PostUpdate))
}

func lifetimeSystem(clock *Time, cmd *Commands) {
	expire(clock, cmd, nil)
}

func portalLifetimeSystem(clock *Time, cmd *Commands, world *PortalWorld) {
	expire(clock, cmd, world)
}

func expire(clock *Time, cmd *Commands, world *PortalWorld) {
	dt := float32(clock.Dt.Seconds())
	if dt <= 0 {
		return
	}
	var expired []EntityId
	MakeQuery1[LifetimeComponent](cmd).Map(func(eid EntityId, lt *LifetimeComponent) bool {
		lt.TimeLeft -= dt
		if lt.TimeLeft <= 0 {
			expired = append(expired, eid)
		}
		return true
	})
	if len(expired) == 0 {
		return
	}

	children := childrenIndex(cmd)
	for _, eid := range expired {
		cmd.Logger().Debugf("lifetime of entity %d expired", eid)
		if world != nil {
			world.ForgetTraveller(cmd, eid)
		}
		removeSubtree(cmd, children, eid)
	}
}

func removeSubtree(cmd *Commands, children map[EntityId][]EntityId, eid EntityId) {
	for _, child := range children[eid] {
		removeSubtree(cmd, children, child)
	}
	cmd.RemoveEntity(eid)
}
