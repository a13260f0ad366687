package packager

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	buildSpecName = "buildspec.yml"
	appSpecName   = "appspec.yml"
	webRoot       = "/usr/share/nginx/html/"
	webUser       = "nginx"
)

// specVersion marshals as an unquoted float literal, keeping "0.0" intact.
type specVersion string

func (v specVersion) MarshalYAML() (interface{}, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: string(v)}, nil
}

type buildSpec struct {
	Version   specVersion               `yaml:"version"`
	Phases    map[string]buildSpecPhase `yaml:"phases"`
	Artifacts buildSpecArtifacts        `yaml:"artifacts"`
}

type buildSpecPhase struct {
	Commands []string `yaml:"commands"`
}

type buildSpecArtifacts struct {
	Files []string `yaml:"files"`
}

type appSpec struct {
	Version     specVersion         `yaml:"version"`
	OS          string              `yaml:"os"`
	Files       []appSpecFile       `yaml:"files"`
	Permissions []appSpecPermission `yaml:"permissions"`
}

type appSpecFile struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

type appSpecPermission struct {
	Object  string `yaml:"object"`
	Pattern string `yaml:"pattern"`
	Owner   string `yaml:"owner"`
	Group   string `yaml:"group"`
}

func defaultBuildSpec() buildSpec {
	return buildSpec{
		Version: "0.2",
		Phases: map[string]buildSpecPhase{
			"build": {Commands: []string{`echo "Static site - nothing to build"`}},
		},
		Artifacts: buildSpecArtifacts{Files: []string{"**/*"}},
	}
}

func defaultAppSpec() appSpec {
	return appSpec{
		Version: "0.0",
		OS:      "linux",
		Files:   []appSpecFile{{Source: "/", Destination: webRoot}},
		Permissions: []appSpecPermission{{
			Object:  "/",
			Pattern: "**",
			Owner:   webUser,
			Group:   webUser,
		}},
	}
}

// injectDescriptors writes the build and deploy descriptors the repository
// does not already carry and returns the names it wrote.
func injectDescriptors(repoPath string) ([]string, error) {
	descriptors := []struct {
		name string
		doc  interface{}
	}{
		{buildSpecName, defaultBuildSpec()},
		{appSpecName, defaultAppSpec()},
	}

	var written []string
	for _, d := range descriptors {
		path := filepath.Join(repoPath, d.name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return written, fmt.Errorf("failed to check %s: %w", d.name, err)
		}

		data, err := yaml.Marshal(d.doc)
		if err != nil {
			return written, fmt.Errorf("failed to render %s: %w", d.name, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", d.name, err)
		}
		written = append(written, d.name)
	}
	return written, nil
}
