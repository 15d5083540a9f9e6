package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/daokit/codec"
)

// =========================================================================
// Test Data Structures
// =========================================================================

type Address struct {
	City    string `db:"city"`
	ZipCode string
}

type Audit struct {
	CreatedAt time.Time
	CreatedBy string
}

type User struct {
	Audit
	ID        uint64 `db:"id"`
	FirstName string `db:"first_name"`
	Email     string `db:"column:mail"`
	Secret    string `db:"-"`
	Address   *Address
	Work      Address
	Tags      []string
	internal  int
}

type FlatUser struct {
	AddressCity string
	Address     Address
}

type Money struct {
	amount   int64
	currency string
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var raw struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.amount, m.currency = raw.Amount, raw.Currency
	return nil
}

type Node struct {
	Name   string
	Parent *Node
}

// =========================================================================
// Naming Tests
// =========================================================================

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"ID":         "id",
		"UserID":     "user_id",
		"FirstName":  "first_name",
		"HTTPServer": "http_server",
		"address2":   "address2",
		"first_name": "first_name",
		"":           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SnakeCase(in), in)
	}
}

func TestCamelCase(t *testing.T) {
	tests := map[string]string{
		"first_name":   "firstName",
		"FirstName":    "firstName",
		"firstName":    "firstName",
		"ID":           "id",
		"user_id":      "userId",
		"UserID":       "userId",
		"created__at":  "createdAt",
		"address_city": "addressCity",
	}
	for in, want := range tests {
		assert.Equal(t, want, CamelCase(in), in)
	}
}

// =========================================================================
// Tag Tests
// =========================================================================

func TestParseTag(t *testing.T) {
	field := func(tag string) reflect.StructTag { return reflect.StructTag(`db:"` + tag + `"`) }

	assert.Equal(t, ParsedTag{ColumnName: "user_name"}, ParseTag("UserName", ""))
	assert.Equal(t, ParsedTag{ColumnName: "uname"}, ParseTag("UserName", field("uname")))
	assert.Equal(t, ParsedTag{ColumnName: "custom"}, ParseTag("UserName", field("column:custom")))
	assert.Equal(t, ParsedTag{Skip: true}, ParseTag("UserName", field("-")))
	assert.Equal(t, ParsedTag{ColumnName: "user_name", Inline: true}, ParseTag("UserName", field("inline")))
	assert.Equal(t, ParsedTag{ColumnName: "x", Inline: true}, ParseTag("UserName", field("name:x; inline; unknown")))
}

// =========================================================================
// Introspection Tests
// =========================================================================

func TestIntrospect(t *testing.T) {
	s, err := Introspect(reflect.TypeOf(&User{}))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(User{}), s.Type)
	assert.False(t, s.Immutable)

	names := make([]string, 0, len(s.Properties))
	for _, p := range s.Properties {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"id", "firstName", "email", "address", "work", "tags", "createdAt", "createdBy"}, names)

	p, ok := s.Lookup("mail")
	require.True(t, ok)
	assert.Equal(t, "Email", p.Field)

	p, ok = s.Lookup("created_at")
	require.True(t, ok)
	assert.Equal(t, []int{0, 0}, p.Index)
	assert.Equal(t, codec.KindTimestamp, p.Kind)

	_, ok = s.Lookup("secret")
	assert.False(t, ok)
	_, ok = s.Lookup("internal")
	assert.False(t, ok)

	again, err := Introspect(reflect.TypeOf(User{}))
	require.NoError(t, err)
	assert.Same(t, s, again)
}

func TestIntrospectRejectsNonStruct(t *testing.T) {
	_, err := Introspect(reflect.TypeOf(42))
	assert.ErrorIs(t, err, ErrNotStruct)
}

func TestImmutableClassification(t *testing.T) {
	s, err := Introspect(reflect.TypeOf(Money{}))
	require.NoError(t, err)
	assert.True(t, s.Immutable)
	assert.Empty(t, s.Properties)
}

func TestNestedProperties(t *testing.T) {
	s, err := Introspect(reflect.TypeOf(User{}))
	require.NoError(t, err)

	addr, _ := s.Lookup("address")
	assert.True(t, addr.Nested())
	created, _ := s.Lookup("createdAt")
	assert.False(t, created.Nested())
	tags, _ := s.Lookup("tags")
	assert.False(t, tags.Nested())

	_, err = tags.Struct()
	assert.ErrorIs(t, err, ErrNotStruct)
}

func TestSelfReferentialType(t *testing.T) {
	path, err := Resolve(reflect.TypeOf(Node{}), []string{"parent", "parent", "name"})
	require.NoError(t, err)
	assert.Equal(t, "parent.parent.name", path.String())
	assert.Equal(t, reflect.TypeOf(""), path.Type())
}

// =========================================================================
// Path Tests
// =========================================================================

func TestResolve(t *testing.T) {
	path, err := Resolve(reflect.TypeOf(User{}), []string{"address", "city"})
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(""), path.Type())

	_, err = Resolve(reflect.TypeOf(User{}), []string{"address", "country"})
	assert.ErrorIs(t, err, ErrUnknownProperty)
	assert.Contains(t, err.Error(), "address.country")

	_, err = Resolve(reflect.TypeOf(User{}), []string{"tags", "x"})
	assert.ErrorIs(t, err, ErrUnknownProperty)

	root, err := Resolve(reflect.TypeOf(int64(0)), nil)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(int64(0)), root.Type())
}

func TestPathGet(t *testing.T) {
	path, err := Resolve(reflect.TypeOf(User{}), []string{"address", "city"})
	require.NoError(t, err)

	v, ok := path.Get(&User{Address: &Address{City: "Oslo"}})
	assert.True(t, ok)
	assert.Equal(t, "Oslo", v)

	_, ok = path.Get(User{})
	assert.False(t, ok)

	_, ok = path.Get((*User)(nil))
	assert.False(t, ok)
}

func TestPathTargetAllocates(t *testing.T) {
	path, err := Resolve(reflect.TypeOf(User{}), []string{"address", "city"})
	require.NoError(t, err)

	var u User
	path.Target(reflect.ValueOf(&u).Elem()).SetString("Lima")
	require.NotNil(t, u.Address)
	assert.Equal(t, "Lima", u.Address.City)
}

// =========================================================================
// Column Matching Tests
// =========================================================================

func TestMatchColumn(t *testing.T) {
	s, err := Introspect(reflect.TypeOf(User{}))
	require.NoError(t, err)

	tests := []struct {
		label string
		path  string
		ok    bool
	}{
		{"id", "id", true},
		{"first_name", "firstName", true},
		{"FIRST_NAME", "firstName", true},
		{"mail", "email", true},
		{"created_by", "createdBy", true},
		{"address.city", "address.city", true},
		{"address_city", "address.city", true},
		{"address_zip_code", "address.zipCode", true},
		{"work.zip_code", "work.zipCode", true},
		{"address.missing", "", false},
		{"tags_x", "", false},
		{"unknown", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			path, ok := s.MatchColumn(tt.label)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.path, path.String())
			}
		})
	}
}

func TestMatchColumnPrefersFlatProperty(t *testing.T) {
	s, err := Introspect(reflect.TypeOf(FlatUser{}))
	require.NoError(t, err)

	path, ok := s.MatchColumn("address_city")
	require.True(t, ok)
	assert.Equal(t, "addressCity", path.String())

	path, ok = s.MatchColumn("address.city")
	require.True(t, ok)
	assert.Equal(t, "address.city", path.String())
}
