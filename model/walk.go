package model

// WalkSubmodel visits every element of the submodel depth-first, children
// before their parents. Return false from fn to stop the walk.
func WalkSubmodel(sm *Submodel, fn func(SubmodelElement) bool) {
	walkNamespace(sm, fn)
}

// WalkNamespace visits every submodel element beneath ns in post-order. The
// namespace itself is not visited. Return false from fn to stop.
func WalkNamespace(ns Namespace, fn func(SubmodelElement) bool) {
	walkNamespace(ns, fn)
}

func walkNamespace(ns Namespace, fn func(SubmodelElement) bool) bool {
	alive := true
	ns.EachReferable(func(r Referable) bool {
		el, ok := r.(SubmodelElement)
		if !ok {
			return true
		}
		if child, ok := r.(Namespace); ok && !walkNamespace(child, fn) {
			alive = false
			return false
		}
		if !fn(el) {
			alive = false
			return false
		}
		return true
	})
	return alive
}

// WalkSemanticIDs visits every non-nil semantic id carried by root and the
// tree beneath it, qualifiers and supplemental ids included. Return false
// from fn to stop.
func WalkSemanticIDs(root Referable, fn func(*Reference) bool) {
	if !visitSemanticIDs(root, fn) {
		return
	}
	if ns, ok := root.(Namespace); ok {
		walkNamespace(ns, func(el SubmodelElement) bool {
			return visitSemanticIDs(el, fn)
		})
	}
}

func visitSemanticIDs(r Referable, fn func(*Reference) bool) bool {
	if h, ok := r.(HasSemantics); ok {
		if ref := h.SemanticID(); ref != nil && !fn(ref) {
			return false
		}
		for _, ref := range h.SupplementalSemanticIDs() {
			if ref != nil && !fn(ref) {
				return false
			}
		}
	}
	if q, ok := r.(Qualifiable); ok && q.Qualifiers() != nil {
		alive := true
		q.Qualifiers().Each(func(x *Qualifier) bool {
			if ref := x.SemanticID(); ref != nil && !fn(ref) {
				alive = false
				return false
			}
			return true
		})
		if !alive {
			return false
		}
	}
	return true
}
