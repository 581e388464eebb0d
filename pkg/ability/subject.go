package ability

import "fmt"

type Action string

const (
	Manage  Action = "manage"
	Read    Action = "read"
	Create  Action = "create"
	Update  Action = "update"
	Edit    Action = "edit"
	Delete  Action = "delete"
	Remove  Action = "remove"
	SetRole Action = "setRole"
	Accept  Action = "accept"
	Cancel  Action = "cancel"
)

// SubjectType names a kind of subject. A bare SubjectType is itself a Subject
// and stands for a type-level check ("may I read products at all").
type SubjectType string

const (
	ProductType      SubjectType = "Product"
	UserType         SubjectType = "User"
	OrganizationType SubjectType = "Organization"
	MemberType       SubjectType = "Organization:Members"
	InvitationType   SubjectType = "Organization:Members:Invite"
)

var SubjectTypes = []SubjectType{ProductType, UserType, OrganizationType, MemberType, InvitationType}

// Subject is the closed set of things a permission can be checked against.
type Subject interface {
	SubjectType() SubjectType
	sealed()
}

func (t SubjectType) SubjectType() SubjectType { return t }
func (SubjectType) sealed()                    {}

type Product struct {
	ID     string
	UserID string
}

func (Product) SubjectType() SubjectType { return ProductType }
func (Product) sealed()                  {}

type User struct {
	ID string
}

func (User) SubjectType() SubjectType { return UserType }
func (User) sealed()                  {}

type Organization struct {
	ID string
}

func (Organization) SubjectType() SubjectType { return OrganizationType }
func (Organization) sealed()                  {}

// Member addresses the membership list of one organization, or one member of it.
type Member struct {
	OrganizationID string
	ID             string
}

func (Member) SubjectType() SubjectType { return MemberType }
func (Member) sealed()                  {}

type Invitation struct {
	ID             string
	OrganizationID string
	Email          string
}

func (Invitation) SubjectType() SubjectType { return InvitationType }
func (Invitation) sealed()                  {}

type Field string

const (
	FieldID             Field = "id"
	FieldUserID         Field = "userId"
	FieldOrganizationID Field = "organizationId"
	FieldEmail          Field = "email"
)

// fieldValue reads f from an instance subject. Type-level subjects carry no fields.
func fieldValue(s Subject, f Field) (string, bool) {
	switch v := s.(type) {
	case SubjectType:
		return "", false
	case Product:
		switch f {
		case FieldID:
			return v.ID, true
		case FieldUserID:
			return v.UserID, true
		}
	case User:
		if f == FieldID {
			return v.ID, true
		}
	case Organization:
		if f == FieldID {
			return v.ID, true
		}
	case Member:
		switch f {
		case FieldID:
			return v.ID, true
		case FieldOrganizationID:
			return v.OrganizationID, true
		}
	case Invitation:
		switch f {
		case FieldID:
			return v.ID, true
		case FieldOrganizationID:
			return v.OrganizationID, true
		case FieldEmail:
			return v.Email, true
		}
	default:
		panic(fmt.Sprintf("ability: unhandled subject %T", s))
	}
	return "", false
}
