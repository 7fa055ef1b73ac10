package main

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/looking-for-freedom/lff-sdm/pkg/config"
)

// configBindings maps flag names to the config.Config fields they
// override.
type configBindings map[string]string

// defineConfigFlags defines the flags that can also be set in a
// config file. These need special treatment, because some care must
// be taken to match them ("bind") with config file field names.
func defineConfigFlags(fs *pflag.FlagSet, bail func(error)) configBindings {
	bindings := configBindings{}
	configStruct := reflect.TypeOf(config.Config{})

	bind := func(fieldName, flagName string) error {
		field, ok := configStruct.FieldByName(fieldName)
		if !ok {
			return fmt.Errorf("attempt to bind a flag to a field not present in config.Config, %q", fieldName)
		}
		if name := strings.Split(field.Tag.Get("json"), ",")[0]; name == "-" {
			return fmt.Errorf(`attempt to bind a flag to a config field tagged as ignored, %q`, field.Name)
		}
		bindings[flagName] = fieldName
		return nil
	}

	bindOrBail := func(fieldName, flagName string) {
		if err := bind(fieldName, flagName); err != nil {
			bail(err)
		}
	}

	defineString := func(fieldName, flagName, desc string) {
		fs.String(flagName, "", desc)
		bindOrBail(fieldName, flagName)
	}

	defineInt := func(fieldName, flagName string, desc string) {
		fs.Int(flagName, 0, desc)
		bindOrBail(fieldName, flagName)
	}

	defaults := config.Default()

	defineString("Name", "name", fmt.Sprintf("name the delivery machine goes by in logs (default %q)", defaults.Name))
	defineString("Owner", "repo-owner", fmt.Sprintf("owner of the repository whose pushes are built (default %q)", defaults.Owner))
	defineString("Repo", "repo-name", fmt.Sprintf("name of the repository whose pushes are built (default %q)", defaults.Repo))
	defineString("Image", "image", fmt.Sprintf("tagged container image to build and deploy (default %q)", defaults.Image))
	defineString("VersionPrefix", "version-prefix", fmt.Sprintf("semantic version that timestamped versions are based on (default %q)", defaults.VersionPrefix))

	defineString("Namespace", "k8s-namespace", fmt.Sprintf("namespace to deploy to (default %q)", defaults.Namespace))
	defineInt("Port", "app-port", fmt.Sprintf("port the deployed container serves on (default %d)", defaults.Port))
	defineInt("Replicas", "app-replicas", fmt.Sprintf("number of replicas to deploy (default %d)", defaults.Replicas))

	defineInt("BuildErrorCode", "build-error-code", fmt.Sprintf("outcome code for a build that could not run at all, as opposed to a failing build step; 0 reports such builds as successful (default %d)", config.InfrastructureErrorCode))

	return bindings
}

// loadConfig reads the config file if there is one, or uses the
// defaults if there is not. A file that was asked for explicitly must
// exist.
func loadConfig(path string, explicit bool) (config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && !explicit {
		return config.Default(), nil
	}
	return config.Load(path)
}

// apply overrides fields in the config with the flags that were given
// on the command line.
func (b configBindings) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	v := reflect.ValueOf(cfg).Elem()
	for flagName, fieldName := range b {
		if !fs.Changed(flagName) {
			continue
		}
		value := fs.Lookup(flagName).Value.String()
		field := v.FieldByName(fieldName)
		switch field.Kind() {
		case reflect.String:
			field.SetString(value)
		case reflect.Int32:
			n, err := strconv.ParseInt(value, 10, 32)
			if err != nil {
				return errors.Wrapf(err, "flag --%s", flagName)
			}
			field.SetInt(n)
		case reflect.Ptr:
			n, err := strconv.Atoi(value)
			if err != nil {
				return errors.Wrapf(err, "flag --%s", flagName)
			}
			field.Set(reflect.ValueOf(&n))
		default:
			return fmt.Errorf("flag --%s is bound to config field %s of unsupported kind %s", flagName, fieldName, field.Kind())
		}
	}
	return nil
}
