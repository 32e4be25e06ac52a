package model

import (
	"strings"

	"github.com/twinforge/aaskit/errors"
)

// AttrSpec declares one indexed attribute of a NamespaceSet: the attribute
// name, whether values are matched case-sensitively, and how to extract the
// value from a member. Case-insensitive matching normalizes to uppercase.
type AttrSpec[T Member] struct {
	Name          string
	CaseSensitive bool
	Get           func(T) string
}

type attrDecl struct {
	name          string
	caseSensitive bool
}

func normalizeAttr(value string, caseSensitive bool) string {
	if caseSensitive {
		return value
	}
	return strings.ToUpper(value)
}

// elementSet is the untyped view a Namespace holds of its sets. It lets the
// uniqueness check span sets of different member kinds.
type elementSet interface {
	attrDecls() []attrDecl
	declares(attr string) bool
	lookup(attr, value string) (any, bool)
	addAny(x any) (bool, error)
	removeAny(x any) error
	eachAny(fn func(any) bool)
	size() int
	rekeyIDShort(x any, newIDShort string)
}

// Namespace is implemented by every element that owns NamespaceSets.
// Aggregate operations address whichever owned set indexes id-shorts;
// an element is reachable only through the index types it was registered
// under.
type Namespace interface {
	Referable
	GetReferable(idShort string) (Referable, error)
	AddReferable(r Referable) error
	RemoveReferable(idShort string) error
	EachReferable(fn func(Referable) bool)
	namespaceSets() []elementSet
	attachSet(s elementSet)
}

// SemanticIDNamespace is the semantic-id flavor of namespace lookup.
type SemanticIDNamespace interface {
	GetBySemanticID(ref *Reference) (HasSemantics, error)
	RemoveBySemanticID(ref *Reference) error
}

// namespaceBase is embedded by every element that owns namespace sets.
type namespaceBase struct {
	sets []elementSet
}

func (n *namespaceBase) namespaceSets() []elementSet { return n.sets }
func (n *namespaceBase) attachSet(s elementSet)      { n.sets = append(n.sets, s) }

// GetReferable finds a child by id-short across all id-short-indexed sets.
func (n *namespaceBase) GetReferable(idShort string) (Referable, error) {
	for _, s := range n.sets {
		if !s.declares(AttrIDShort) {
			continue
		}
		if x, ok := s.lookup(AttrIDShort, idShort); ok {
			return x.(Referable), nil
		}
	}
	return nil, errors.NewNotFound("no referable with id short %q in this namespace", idShort)
}

// AddReferable adds a child to the first id-short-indexed set that accepts
// its kind.
func (n *namespaceBase) AddReferable(r Referable) error {
	for _, s := range n.sets {
		if !s.declares(AttrIDShort) {
			continue
		}
		accepted, err := s.addAny(r)
		if accepted {
			return err
		}
	}
	return errors.NewConstraint("namespace has no set accepting %T", r)
}

// RemoveReferable removes the child with the given id-short.
func (n *namespaceBase) RemoveReferable(idShort string) error {
	for _, s := range n.sets {
		if !s.declares(AttrIDShort) {
			continue
		}
		if x, ok := s.lookup(AttrIDShort, idShort); ok {
			return s.removeAny(x)
		}
	}
	return errors.NewNotFound("no referable with id short %q in this namespace", idShort)
}

// EachReferable visits every element of every id-short-indexed set, in
// declared set order. Return false to stop.
func (n *namespaceBase) EachReferable(fn func(Referable) bool) {
	for _, s := range n.sets {
		if !s.declares(AttrIDShort) {
			continue
		}
		stopped := false
		s.eachAny(func(x any) bool {
			if !fn(x.(Referable)) {
				stopped = true
				return false
			}
			return true
		})
		if stopped {
			return
		}
	}
}

// GetBySemanticID finds a member by semantic id across all
// semantic-id-indexed sets.
func (n *namespaceBase) GetBySemanticID(ref *Reference) (HasSemantics, error) {
	if ref == nil {
		return nil, errors.NewNotFound("no member for a nil semantic id")
	}
	for _, s := range n.sets {
		if !s.declares(AttrSemanticID) {
			continue
		}
		if x, ok := s.lookup(AttrSemanticID, ref.String()); ok {
			return x.(HasSemantics), nil
		}
	}
	return nil, errors.NewNotFound("no member with semantic id %s in this namespace", ref)
}

// RemoveBySemanticID removes the member with the given semantic id.
func (n *namespaceBase) RemoveBySemanticID(ref *Reference) error {
	if ref == nil {
		return errors.NewNotFound("no member for a nil semantic id")
	}
	for _, s := range n.sets {
		if !s.declares(AttrSemanticID) {
			continue
		}
		if x, ok := s.lookup(AttrSemanticID, ref.String()); ok {
			return s.removeAny(x)
		}
	}
	return errors.NewNotFound("no member with semantic id %s in this namespace", ref)
}

// NamespaceSet stores members of one kind, unique by one or more declared
// attributes. Uniqueness spans the union of all sets owned by the same
// parent: an add that would collide anywhere in the namespace fails without
// touching any index. The set manages the parent back-reference of its
// members; a member belongs to at most one set at a time.
//
// Iteration follows insertion order. Mutations are not synchronized; the
// object graph assumes a single writer.
type NamespaceSet[T Member] struct {
	parent Namespace
	self   elementSet
	attrs  []AttrSpec[T]
	index  map[string]map[string]T
	order  []T

	// deriveID computes identifying attributes on add, clearID wipes them
	// after removal. Used by list namespaces with index-derived id-shorts.
	deriveID func(T)
	clearID  func(T)
}

// NewNamespaceSet creates a set owned by parent and indexed by attrs, then
// adds the given items. If any item fails, the whole set is cleared and the
// error returned.
func NewNamespaceSet[T Member](parent Namespace, attrs []AttrSpec[T], items ...T) (*NamespaceSet[T], error) {
	s, err := newNamespaceSet(parent, attrs)
	if err != nil {
		return nil, err
	}
	if err := s.addAll(items); err != nil {
		return nil, err
	}
	return s, nil
}

func newNamespaceSet[T Member](parent Namespace, attrs []AttrSpec[T]) (*NamespaceSet[T], error) {
	if parent == nil {
		return nil, errors.NewConstraint("namespace set requires a parent namespace")
	}
	if len(attrs) == 0 {
		return nil, errors.NewConstraint("namespace set requires at least one indexed attribute")
	}
	s := &NamespaceSet[T]{}
	initSet(s, parent, attrs, s)
	return s, nil
}

// newMemberSet wires an empty set into parent. For internal construction
// where the arguments are known good.
func newMemberSet[T Member](parent Namespace, attrs []AttrSpec[T]) *NamespaceSet[T] {
	s := &NamespaceSet[T]{}
	initSet(s, parent, attrs, s)
	return s
}

func initSet[T Member](s *NamespaceSet[T], parent Namespace, attrs []AttrSpec[T], self elementSet) {
	s.parent = parent
	s.self = self
	s.attrs = attrs
	s.index = make(map[string]map[string]T, len(attrs))
	for _, a := range attrs {
		s.index[a.Name] = make(map[string]T)
	}
	parent.attachSet(self)
}

func (s *NamespaceSet[T]) addAll(items []T) error {
	for _, x := range items {
		if err := s.Add(x); err != nil {
			s.Clear()
			return err
		}
	}
	return nil
}

// Add validates x against the whole namespace and registers it under every
// declared index. A failed add leaves every index untouched.
func (s *NamespaceSet[T]) Add(x T) error {
	detached := x.Parent() == nil
	if !detached {
		var own Referable = s.parent
		if x.Parent() != own {
			return errors.NewConstraint("member already belongs to namespace %q", x.Parent().IDShort())
		}
	}
	if s.deriveID != nil && detached {
		s.deriveID(x)
	}
	if err := s.validate(x); err != nil {
		if s.clearID != nil && detached {
			s.clearID(x)
		}
		return err
	}
	x.setParent(s.parent)
	for _, a := range s.attrs {
		s.index[a.Name][normalizeAttr(a.Get(x), a.CaseSensitive)] = x
	}
	s.order = append(s.order, x)
	return nil
}

// validate checks x against this set's declared attributes and against every
// sibling set of the same parent. Sibling sets are checked through the
// per-kind attribute table, so a member is only held against attributes it
// actually carries.
func (s *NamespaceSet[T]) validate(x T) error {
	for _, a := range s.attrs {
		v := a.Get(x)
		if v == "" {
			return errors.NewConstraint("%s must be set before adding to a namespace", a.Name)
		}
		if _, ok := s.index[a.Name][normalizeAttr(v, a.CaseSensitive)]; ok {
			return errors.NewConstraint("%s %q is already present in this set", a.Name, v)
		}
	}
	for _, sib := range s.parent.namespaceSets() {
		if sib == s.self {
			continue
		}
		for _, d := range sib.attrDecls() {
			v, ok := attributeValue(x, d.name)
			if !ok {
				continue
			}
			if v == "" {
				return errors.NewConstraint("%s must be set before adding to a namespace", d.name)
			}
			if _, found := sib.lookup(d.name, v); found {
				return errors.NewConstraint("%s %q is already present in another set of the same namespace", d.name, v)
			}
		}
	}
	return nil
}

// Remove detaches x: index entries are purged, then the removal hook runs,
// then the parent back-reference is cleared.
func (s *NamespaceSet[T]) Remove(x T) error {
	found := false
	for _, a := range s.attrs {
		key := normalizeAttr(a.Get(x), a.CaseSensitive)
		if cur, ok := s.index[a.Name][key]; ok && Member(cur) == Member(x) {
			delete(s.index[a.Name], key)
			found = true
		}
	}
	if !found {
		return errors.NewNotFound("member is not part of this namespace set")
	}
	for i, it := range s.order {
		if Member(it) == Member(x) {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.clearID != nil {
		s.clearID(x)
	}
	x.setParent(nil)
	return nil
}

// RemoveByID removes the member found under the given attribute value.
func (s *NamespaceSet[T]) RemoveByID(attr, value string) error {
	x, err := s.Get(attr, value)
	if err != nil {
		return err
	}
	return s.Remove(x)
}

// Get finds a member by one of the declared attributes.
func (s *NamespaceSet[T]) Get(attr, value string) (T, error) {
	var zero T
	d, ok := s.declOf(attr)
	if !ok {
		return zero, errors.NewNotFound("attribute %q is not indexed by this set", attr)
	}
	x, ok := s.index[attr][normalizeAttr(value, d.CaseSensitive)]
	if !ok {
		return zero, errors.NewNotFound("no member with %s %q", attr, value)
	}
	return x, nil
}

// GetOrDefault is Get with a fallback instead of an error.
func (s *NamespaceSet[T]) GetOrDefault(attr, value string, def T) T {
	if x, err := s.Get(attr, value); err == nil {
		return x
	}
	return def
}

// Contains reports whether this exact member instance is part of the set.
func (s *NamespaceSet[T]) Contains(x T) bool {
	a := s.attrs[0]
	cur, ok := s.index[a.Name][normalizeAttr(a.Get(x), a.CaseSensitive)]
	return ok && Member(cur) == Member(x)
}

// ContainsValue reports whether any member is indexed under the value.
func (s *NamespaceSet[T]) ContainsValue(attr, value string) bool {
	_, ok := s.lookup(attr, value)
	return ok
}

// Len reports the number of members.
func (s *NamespaceSet[T]) Len() int { return len(s.order) }

// Each visits members in insertion order. Return false to stop.
func (s *NamespaceSet[T]) Each(fn func(T) bool) {
	for _, x := range s.order {
		if !fn(x) {
			return
		}
	}
}

// All returns the members in insertion order.
func (s *NamespaceSet[T]) All() []T {
	return append([]T(nil), s.order...)
}

// Clear removes every member.
func (s *NamespaceSet[T]) Clear() {
	for _, x := range s.All() {
		_ = s.Remove(x)
	}
}

func (s *NamespaceSet[T]) declOf(attr string) (AttrSpec[T], bool) {
	for _, a := range s.attrs {
		if a.Name == attr {
			return a, true
		}
	}
	return AttrSpec[T]{}, false
}

func (s *NamespaceSet[T]) attrDecls() []attrDecl {
	out := make([]attrDecl, len(s.attrs))
	for i, a := range s.attrs {
		out[i] = attrDecl{name: a.Name, caseSensitive: a.CaseSensitive}
	}
	return out
}

func (s *NamespaceSet[T]) declares(attr string) bool {
	_, ok := s.declOf(attr)
	return ok
}

func (s *NamespaceSet[T]) lookup(attr, value string) (any, bool) {
	d, ok := s.declOf(attr)
	if !ok {
		return nil, false
	}
	x, ok := s.index[attr][normalizeAttr(value, d.CaseSensitive)]
	if !ok {
		return nil, false
	}
	return x, true
}

func (s *NamespaceSet[T]) addAny(x any) (bool, error) {
	t, ok := x.(T)
	if !ok {
		return false, nil
	}
	return true, s.Add(t)
}

func (s *NamespaceSet[T]) removeAny(x any) error {
	t, ok := x.(T)
	if !ok {
		return errors.NewNotFound("member is not part of this namespace set")
	}
	return s.Remove(t)
}

func (s *NamespaceSet[T]) eachAny(fn func(any) bool) {
	for _, x := range s.order {
		if !fn(x) {
			return
		}
	}
}

func (s *NamespaceSet[T]) size() int { return len(s.order) }

// rekeyIDShort moves x to a new id-short index entry and rewrites the
// member's id-short. The caller has already validated uniqueness.
func (s *NamespaceSet[T]) rekeyIDShort(x any, newIDShort string) {
	r, ok := x.(Referable)
	if !ok {
		return
	}
	d, ok := s.declOf(AttrIDShort)
	if !ok {
		return
	}
	t, ok := x.(T)
	if !ok {
		return
	}
	delete(s.index[AttrIDShort], normalizeAttr(r.IDShort(), d.CaseSensitive))
	r.refBase().setIDShortRaw(newIDShort)
	s.index[AttrIDShort][normalizeAttr(newIDShort, d.CaseSensitive)] = t
}

// OrderedNamespaceSet adds index-based access on top of NamespaceSet.
// Duplicate membership stays forbidden.
type OrderedNamespaceSet[T Member] struct {
	NamespaceSet[T]
}

// NewOrderedNamespaceSet creates an ordered set owned by parent, then adds
// the given items with whole-set rollback on failure.
func NewOrderedNamespaceSet[T Member](parent Namespace, attrs []AttrSpec[T], items ...T) (*OrderedNamespaceSet[T], error) {
	if parent == nil {
		return nil, errors.NewConstraint("namespace set requires a parent namespace")
	}
	if len(attrs) == 0 {
		return nil, errors.NewConstraint("namespace set requires at least one indexed attribute")
	}
	s := &OrderedNamespaceSet[T]{}
	initSet(&s.NamespaceSet, parent, attrs, s)
	if err := s.addAll(items); err != nil {
		return nil, err
	}
	return s, nil
}

// newOrderedMemberSet wires an empty ordered set into parent.
func newOrderedMemberSet[T Member](parent Namespace, attrs []AttrSpec[T]) *OrderedNamespaceSet[T] {
	s := &OrderedNamespaceSet[T]{}
	initSet(&s.NamespaceSet, parent, attrs, s)
	return s
}

// newOrderedHookedSet wires an empty ordered set whose members get derived
// identifying attributes.
func newOrderedHookedSet[T Member](parent Namespace, attrs []AttrSpec[T], deriveID, clearID func(T)) *OrderedNamespaceSet[T] {
	s := &OrderedNamespaceSet[T]{}
	s.deriveID = deriveID
	s.clearID = clearID
	initSet(&s.NamespaceSet, parent, attrs, s)
	return s
}

// GetAt returns the member at position i.
func (s *OrderedNamespaceSet[T]) GetAt(i int) (T, error) {
	var zero T
	if i < 0 || i >= len(s.order) {
		return zero, errors.NewNotFound("index %d out of range in ordered set of %d", i, len(s.order))
	}
	return s.order[i], nil
}

// Insert adds x at position i, shifting later members right.
func (s *OrderedNamespaceSet[T]) Insert(i int, x T) error {
	if i < 0 || i > len(s.order) {
		return errors.NewConstraint("insert index %d out of range in ordered set of %d", i, len(s.order))
	}
	if err := s.Add(x); err != nil {
		return err
	}
	for j := len(s.order) - 1; j > i; j-- {
		s.order[j] = s.order[j-1]
	}
	s.order[i] = x
	return nil
}

// SetAt replaces the member at position i with x. The replaced member is
// removed from the namespace; x must not collide with any member, the
// replaced one included.
func (s *OrderedNamespaceSet[T]) SetAt(i int, x T) error {
	if i < 0 || i >= len(s.order) {
		return errors.NewNotFound("index %d out of range in ordered set of %d", i, len(s.order))
	}
	old := s.order[i]
	if err := s.Add(x); err != nil {
		return err
	}
	s.order = s.order[:len(s.order)-1]
	s.order[i] = x
	return s.Remove(old)
}

// DeleteAt removes the member at position i.
func (s *OrderedNamespaceSet[T]) DeleteAt(i int) error {
	x, err := s.GetAt(i)
	if err != nil {
		return err
	}
	return s.Remove(x)
}

// Index reports the position of x, or -1 when absent.
func (s *OrderedNamespaceSet[T]) Index(x T) int {
	for i, it := range s.order {
		if Member(it) == Member(x) {
			return i
		}
	}
	return -1
}

// Rename changes the id-short of an attached referable in place: the new
// value is checked for uniqueness across the parent's namespace, then the
// owning index entry is moved. Detached referables fall back to SetIDShort.
// Members of a SubmodelElementList keep their index-derived id-shorts and
// cannot be renamed.
func Rename(r Referable, newIDShort string) error {
	if newIDShort == "" {
		return errors.NewConstraint("id short must not be empty")
	}
	parent := r.Parent()
	if parent == nil {
		return r.SetIDShort(newIDShort)
	}
	if _, ok := parent.(*SubmodelElementList); ok {
		return errors.NewConstraint("id short of a list member is derived from its position")
	}
	ns, ok := parent.(Namespace)
	if !ok {
		return errors.AssertionFailedf("parent %T owns no namespace sets", parent)
	}
	var owner elementSet
	for _, set := range ns.namespaceSets() {
		if !set.declares(AttrIDShort) {
			continue
		}
		if existing, found := set.lookup(AttrIDShort, newIDShort); found && existing != any(r) {
			return errors.NewConstraint("id short %q is already present in the namespace", newIDShort)
		}
		if existing, found := set.lookup(AttrIDShort, r.IDShort()); found && existing == any(r) {
			owner = set
		}
	}
	if owner == nil {
		return errors.NewNotFound("%q is not indexed in its parent namespace", r.IDShort())
	}
	owner.rekeyIDShort(r, newIDShort)
	return nil
}
