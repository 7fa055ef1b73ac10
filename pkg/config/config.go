// config is the package containing the configuration of the delivery
// machine, shared so it can be used by sdmd itself as well as by
// sdmctl.
package config

import (
	"fmt"
	"io/ioutil"

	"github.com/ghodss/yaml"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"

	"github.com/looking-for-freedom/lff-sdm/pkg/image"
	"github.com/looking-for-freedom/lff-sdm/pkg/version"
)

const (
	ConfigPath       = "/etc/sdm/config.yaml"
	SDMConfigVersion = "v1"
)

// Config says which repository the machine builds, and how it builds
// and deploys it.
type Config struct {
	// This is expected to be present in a config file. If it is not
	// equal to SDMConfigVersion above, the file is considered an
	// invalid configuration.
	ConfigVersion string `json:"sdmConfigVersion"`

	Name string `json:"name"`

	// The repository that is built when pushed to
	Owner string `json:"owner"`
	Repo  string `json:"repo"`

	// Image is what the build produces and the deploy runs. There is
	// one, so the two always agree.
	Image         string `json:"image"`
	VersionPrefix string `json:"versionPrefix"`

	Namespace string `json:"namespace"`
	Port      int32  `json:"port"`
	Replicas  int32  `json:"replicas"`

	// BuildErrorCode is the outcome code for builds that fail with an
	// error rather than a failing command. Zero is allowed, and reports
	// such failures as successes.
	BuildErrorCode *int `json:"buildErrorCode,omitempty"`
}

// InfrastructureErrorCode is the default BuildErrorCode. It is outside
// the range of process exit codes.
const InfrastructureErrorCode = 256

// Default is the configuration of the machine that builds itself.
func Default() Config {
	code := InfrastructureErrorCode
	return Config{
		ConfigVersion:  SDMConfigVersion,
		Name:           "Freedom Seeking Software Delivery Machine",
		Owner:          "looking-for-freedom",
		Repo:           "lff-sdm",
		Image:          "atmhoff/lff-sdm:1.0.0",
		VersionPrefix:  "1.0.0",
		Namespace:      "lff",
		Port:           2866,
		Replicas:       1,
		BuildErrorCode: &code,
	}
}

// Parse reads a configuration file's contents. Anything the file
// leaves out is taken from Default().
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	if err := c.IsValid(); err != nil {
		return Config{}, err
	}
	// mergo counts a pointer to zero as empty, and would replace an
	// explicit `buildErrorCode: 0`.
	var code *int
	if c.BuildErrorCode != nil {
		n := *c.BuildErrorCode
		code = &n
	}
	if err := mergo.Merge(&c, Default()); err != nil {
		return Config{}, errors.Wrap(err, "applying config defaults")
	}
	if code != nil {
		c.BuildErrorCode = code
	}
	return c, nil
}

func Load(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}
	return Parse(data)
}

func (c Config) IsValid() error {
	if c.ConfigVersion != SDMConfigVersion {
		return fmt.Errorf("config file is expected to include `sdmConfigVersion: %s` to mark it as a delivery machine config", SDMConfigVersion)
	}
	return nil
}

// Validate checks that a complete configuration makes sense.
func (c Config) Validate() error {
	if c.Owner == "" || c.Repo == "" {
		return errors.New("config must name the repository owner and repo")
	}
	if _, err := image.ParseTaggedRef(c.Image); err != nil {
		return errors.Wrapf(err, "config image %q", c.Image)
	}
	if err := (version.Versioner{Prefix: c.VersionPrefix}).Validate(); err != nil {
		return err
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("config port %d out of range", c.Port)
	}
	if c.Namespace == "" {
		return errors.New("config must give a namespace to deploy to")
	}
	return nil
}

// ErrorCode gives BuildErrorCode, or the default if it is not set.
func (c Config) ErrorCode() int {
	if c.BuildErrorCode == nil {
		return InfrastructureErrorCode
	}
	return *c.BuildErrorCode
}
