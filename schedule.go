package portals

import (
	"fmt"
	"slices"
)

type UpdateType int

const (
	FixedUpdate UpdateType = iota
	DynamicUpdate
)

type Stage struct {
	Name       string
	UpdateType UpdateType
}

var (
	Prelude        = Stage{Name: "Prelude", UpdateType: DynamicUpdate}
	FixedPreUpdate = Stage{Name: "FixedPreUpdate", UpdateType: FixedUpdate}
	FixedStep      = Stage{Name: "FixedStep", UpdateType: FixedUpdate}
	PreUpdate      = Stage{Name: "PreUpdate", UpdateType: DynamicUpdate}
	Update         = Stage{Name: "Update", UpdateType: DynamicUpdate}
	PostUpdate     = Stage{Name: "PostUpdate", UpdateType: DynamicUpdate}
	PreRender      = Stage{Name: "PreRender", UpdateType: DynamicUpdate}
	Render         = Stage{Name: "Render", UpdateType: DynamicUpdate}
	PostRender     = Stage{Name: "PostRender", UpdateType: DynamicUpdate}
	Finale         = Stage{Name: "Finale", UpdateType: DynamicUpdate}
)

// Fixed stages of a frame all run before its dynamic stages, see App.Update.
var defaultStages = []Stage{
	Prelude,
	FixedPreUpdate,
	FixedStep,
	PreUpdate,
	Update,
	PostUpdate,
	PreRender,
	Render,
	PostRender,
	Finale,
}

type systemScheduleBuilder struct {
	inStage Stage
	system  systemFn
}

func (sched systemScheduleBuilder) InStage(s Stage) systemScheduleBuilder {
	return systemScheduleBuilder{
		system:  sched.system,
		inStage: s,
	}
}

func System(system systemFn) systemScheduleBuilder {
	return systemScheduleBuilder{
		system:  system,
		inStage: Update,
	}
}

type stagePosition int

const (
	stageBefore stagePosition = iota
	stageAfter
)

type stagePositionBuilder struct {
	position stagePosition
	target   Stage
}

func BeforeStage(s Stage) stagePositionBuilder {
	return stagePositionBuilder{
		position: stageBefore,
		target:   s,
	}
}

func AfterStage(s Stage) stagePositionBuilder {
	return stagePositionBuilder{
		position: stageAfter,
		target:   s,
	}
}

func (app *App) UseStage(stage Stage, where stagePositionBuilder) *App {
	stageIdx := slices.IndexFunc(app.stages, func(s Stage) bool { return s.Name == where.target.Name })
	if -1 == stageIdx {
		panic(fmt.Sprintf("Stage %v not found", where.target.Name))
	}

	var insertAt int
	if stageBefore == where.position {
		insertAt = stageIdx
	} else {
		insertAt = stageIdx + 1
	}

	app.stages = slices.Insert(app.stages, insertAt, stage)
	app.systems[stage.Name] = make([]systemFn, 0)

	return app
}

func (app *App) UseSystem(system systemScheduleBuilder) *App {
	if _, ok := app.systems[system.inStage.Name]; !ok {
		panic(fmt.Sprintf("Stage %v doesn't exist", system.inStage.Name))
	}
	app.systems[system.inStage.Name] = append(app.systems[system.inStage.Name], system.system)
	return app
}
