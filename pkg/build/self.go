package build

import (
	"github.com/looking-for-freedom/lff-sdm/pkg/image"
	"github.com/looking-for-freedom/lff-sdm/pkg/process"
	"github.com/looking-for-freedom/lff-sdm/pkg/project"
)

// FailMarker is a file which, when present at the root of a project,
// makes the self build run a single failing command instead of the
// real build. It is for exercising what happens when builds fail.
const FailMarker = ".fail"

var failCommand = process.Command{Program: "false"}

// SelfBuildCommands are the commands that build the machine itself:
// install dependencies, compile, and build the image.
func SelfBuildCommands(img image.Ref) []process.Command {
	return []process.Command{
		{Program: "npm", Args: []string{"ci"}, Env: map[string]string{"NODE_ENV": "development"}},
		{Program: "npm", Args: []string{"run", "compile"}},
		{Program: "docker", Args: []string{"build", "-t", img.String(), "."}},
	}
}

// SelfBuildPlan builds with SelfBuildCommands, unless the project has
// the FailMarker.
func SelfBuildPlan(img image.Ref) Plan {
	return func(p project.Project) ([]process.Command, error) {
		fail, err := p.HasFile(FailMarker)
		if err != nil {
			return nil, err
		}
		if fail {
			return []process.Command{failCommand}, nil
		}
		return SelfBuildCommands(img), nil
	}
}
