package model

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Identifiable is a root-level referable with a globally unique identifier.
// The identifier is fixed at construction; object stores key on it.
type Identifiable interface {
	Referable
	ID() string
	Administration() *AdministrativeInformation
}

// AdministrativeInformation carries versioning metadata of an identifiable.
type AdministrativeInformation struct {
	Version  string
	Revision string

	Creator    *Reference
	TemplateID string
}

// VersionString renders "version.revision", or just the version when no
// revision is set.
func (a *AdministrativeInformation) VersionString() string {
	if a == nil || a.Version == "" {
		return ""
	}
	if a.Revision == "" {
		return a.Version
	}
	return a.Version + "." + a.Revision
}

// Compare orders two administrative versions: -1 when a is older, 0 when
// equal, 1 when newer. Versions compare semantically when both sides parse,
// otherwise lexically. A missing version is older than any set version.
func (a *AdministrativeInformation) Compare(other *AdministrativeInformation) int {
	av, bv := a.VersionString(), other.VersionString()
	if av == bv {
		return 0
	}
	if av == "" {
		return -1
	}
	if bv == "" {
		return 1
	}
	asem, aerr := semver.NewVersion(av)
	bsem, berr := semver.NewVersion(bv)
	if aerr == nil && berr == nil {
		return asem.Compare(bsem)
	}
	return strings.Compare(av, bv)
}

// identifiableBase is the embedded core of every identifiable element.
type identifiableBase struct {
	base
	id             string
	administration *AdministrativeInformation
}

func (i *identifiableBase) ID() string { return i.id }

func (i *identifiableBase) Administration() *AdministrativeInformation {
	return i.administration
}

func (i *identifiableBase) SetAdministration(a *AdministrativeInformation) {
	i.administration = a
}
