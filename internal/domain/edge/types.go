package edge

// Type is the relationship taxonomy between two memories (spec §3/§4.3).
type Type string

const (
	TypeLeadsTo    Type = "LEADS_TO"
	TypeRelatedTo  Type = "RELATED_TO"
	TypeContradicts Type = "CONTRADICTS"
	TypeSupports   Type = "SUPPORTS"
	TypeLikes      Type = "LIKES"
	TypeDislikes   Type = "DISLIKES"
	TypeDependsOn  Type = "DEPENDS_ON"
	TypeEvolvesInto Type = "EVOLVES_INTO"
)

func (t Type) Valid() bool {
	switch t {
	case TypeLeadsTo, TypeRelatedTo, TypeContradicts, TypeSupports, TypeLikes, TypeDislikes, TypeDependsOn, TypeEvolvesInto:
		return true
	}
	return false
}

// IsCausal reports whether the type inherently implies causality, used by
// the relationship-inference pipeline when a caller omits the flag (spec §4.3).
func (t Type) IsCausal() bool {
	switch t {
	case TypeLeadsTo, TypeDependsOn, TypeEvolvesInto:
		return true
	}
	return false
}
