// Package toolchain resolves the build tool version of a linked project.
package toolchain

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/magiconair/properties"

	"github.com/dshills/scriptroots/internal/logging"
	"github.com/dshills/scriptroots/internal/roots"
	"github.com/dshills/scriptroots/internal/vfs"
)

// WrapperProperties is the wrapper file path relative to the project.
const WrapperProperties = "gradle/wrapper/gradle-wrapper.properties"

var (
	distributionRe = regexp.MustCompile(`gradle-([0-9][0-9A-Za-z.\-]*?)-(?:bin|all)\.zip$`)
	homeRe         = regexp.MustCompile(`^gradle-([0-9][0-9A-Za-z.\-]*)$`)
)

// Resolver implements roots.VersionResolver.
//
// Sources, first match wins: the version pinned in the settings, the
// distributionUrl of the project's wrapper properties, the name of the tool
// home directory (gradle-<version>).
type Resolver struct {
	fs  vfs.FS
	log *logging.Logger
}

var _ roots.VersionResolver = (*Resolver)(nil)

// NewResolver creates a resolver reading project files from fsys.
func NewResolver(fsys vfs.FS, log *logging.Logger) *Resolver {
	return &Resolver{fs: fsys, log: logging.OrNop(log).WithComponent("toolchain")}
}

// ResolveToolVersion implements roots.VersionResolver.
func (r *Resolver) ResolveToolVersion(ps roots.ProjectSettings) (roots.ToolVersion, error) {
	if ps.ToolVersion != "" {
		return roots.ParseToolVersion(ps.ToolVersion)
	}

	v, err := r.fromWrapper(ps.ExternalProjectPath)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		r.log.Debug("wrapper of %s: %v", ps.ExternalProjectPath, err)
	}

	if ps.ToolHome != "" {
		if m := homeRe.FindStringSubmatch(path.Base(slash(ps.ToolHome))); m != nil {
			return roots.ParseToolVersion(m[1])
		}
	}
	return roots.ToolVersion{}, fmt.Errorf("%w: no version source for %s", roots.ErrUnresolvableToolVersion, ps.ExternalProjectPath)
}

func (r *Resolver) fromWrapper(project string) (roots.ToolVersion, error) {
	data, err := r.fs.ReadFile(path.Join(slash(project), WrapperProperties))
	if err != nil {
		return roots.ToolVersion{}, err
	}
	props, err := properties.LoadString(string(data))
	if err != nil {
		return roots.ToolVersion{}, fmt.Errorf("%w: %w", roots.ErrUnresolvableToolVersion, err)
	}
	url, ok := props.Get("distributionUrl")
	if !ok {
		return roots.ToolVersion{}, fmt.Errorf("%w: wrapper has no distributionUrl", roots.ErrUnresolvableToolVersion)
	}
	return VersionFromDistributionURL(url)
}

// VersionFromDistributionURL extracts the version from a distribution URL
// such as https://services.gradle.org/distributions/gradle-8.5-bin.zip.
func VersionFromDistributionURL(url string) (roots.ToolVersion, error) {
	m := distributionRe.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return roots.ToolVersion{}, fmt.Errorf("%w: unrecognized distribution %q", roots.ErrUnresolvableToolVersion, url)
	}
	return roots.ParseToolVersion(m[1])
}

func slash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
