package mapper

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/daokit/database"
	"github.com/Konsultn-Engineering/daokit/database/databasetest"
)

// =========================================================================
// Fixtures
// =========================================================================

type Address struct {
	City string
	Zip  string
}

type Person struct {
	ID        int64
	FirstName string
	Birthday  civil.Date
	Nickname  *string
	Address   *Address
	Tags      []string
	Extra     map[string]any
}

type Flat struct {
	AddressCity string
	Address     Address
}

type Money struct {
	amount   int64
	currency string
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var raw struct {
		Amount       int64  `json:"amount"`
		CurrencyCode string `json:"currencyCode"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.amount, m.currency = raw.Amount, raw.CurrencyCode
	return nil
}

type Invoice struct {
	id    string
	total Money
}

func (i *Invoice) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID    string `json:"id"`
		Total Money  `json:"total"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	i.id, i.total = raw.ID, raw.Total
	return nil
}

// =========================================================================
// Scalars
// =========================================================================

func TestDecode_ScalarShortcut(t *testing.T) {
	d := New()

	ids, err := Collect[int](d, databasetest.NewRows([]string{"count"}, []any{int64(3)}, []any{int64(7)}))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, ids)

	names, err := Collect[*string](d, databasetest.NewRows([]string{"name"}, []any{"ada"}, []any{nil}))
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, "ada", *names[0])
	assert.Nil(t, names[1])

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	times, err := Collect[time.Time](d, databasetest.NewRows([]string{"at", "ignored"}, []any{ts, "x"}))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{ts}, times)

	u := uuid.New()
	uuids, err := Collect[uuid.UUID](d, databasetest.NewRows([]string{"id"}, []any{[16]byte(u)}))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{u}, uuids)
}

func TestDecode_RowMap(t *testing.T) {
	rows, err := Collect[map[string]any](New(), databasetest.NewRows([]string{"a", "b"}, []any{int64(1), nil}))
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"a": int64(1), "b": nil}}, rows)
}

// =========================================================================
// Mutable structs
// =========================================================================

func TestDecode_MutableStruct(t *testing.T) {
	rows := databasetest.NewRows(
		[]string{"id", "first_name", "birthday", "nickname", "address_city", "address.zip", "tags", "extra"},
		[]any{int64(1), "Ada", "1815-12-10", "countess", "London", "W1", `["math","poetry"]`, []byte(`{"k":1}`)},
	)

	people, err := Collect[Person](New(), rows)
	require.NoError(t, err)
	require.Len(t, people, 1)

	p := people[0]
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, civil.Date{Year: 1815, Month: 12, Day: 10}, p.Birthday)
	require.NotNil(t, p.Nickname)
	assert.Equal(t, "countess", *p.Nickname)
	require.NotNil(t, p.Address)
	assert.Equal(t, Address{City: "London", Zip: "W1"}, *p.Address)
	assert.Equal(t, []string{"math", "poetry"}, p.Tags)
	assert.Equal(t, map[string]any{"k": float64(1)}, p.Extra)
	assert.True(t, rows.Closed())
}

func TestDecode_NullNestedStaysNil(t *testing.T) {
	rows := databasetest.NewRows([]string{"id", "nickname", "address_city", "address_zip"}, []any{int64(2), nil, nil, nil})

	people, err := Collect[Person](New(), rows)
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Nil(t, people[0].Nickname)
	assert.Nil(t, people[0].Address)
}

func TestDecode_PointerTargetAllNull(t *testing.T) {
	rows := databasetest.NewRows([]string{"id", "first_name"}, []any{nil, nil}, []any{int64(3), "Grace"})

	people, err := Collect[*Person](New(), rows)
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Nil(t, people[0])
	require.NotNil(t, people[1])
	assert.Equal(t, "Grace", people[1].FirstName)
}

func TestDecode_FlatPropertyBeatsNestedPath(t *testing.T) {
	rows := databasetest.NewRows([]string{"address_city", "address_zip"}, []any{"Paris", "75001"})

	out, err := Collect[Flat](New(), rows)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Paris", out[0].AddressCity)
	assert.Equal(t, "", out[0].Address.City)
	assert.Equal(t, "75001", out[0].Address.Zip)
}

func TestDecode_UnmatchedColumnsWarnOncePerPlan(t *testing.T) {
	var buf bytes.Buffer
	d := New(WithLogger(zerolog.New(&buf)))

	for range 3 {
		_, err := Collect[Person](d, databasetest.NewRows([]string{"id", "shoe_size"}, []any{int64(1), int64(44)}))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, strings.Count(buf.String(), "unmatched result columns skipped"))
	assert.Contains(t, buf.String(), "shoe_size")
}

func TestDecode_DecodeErrorCarriesContext(t *testing.T) {
	rows := databasetest.NewRows([]string{"id"}, []any{"not a number"})

	_, err := Collect[Person](New(), rows)
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "id", de.Column)
	assert.Equal(t, reflect.TypeFor[Person](), de.Type)
	assert.Contains(t, err.Error(), `column "id"`)
}

// =========================================================================
// Immutable types
// =========================================================================

func TestDecode_Immutable(t *testing.T) {
	rows := databasetest.NewRows([]string{"amount", "currency_code"}, []any{int64(1250), []byte("EUR")})

	out, err := Collect[Money](New(), rows)
	require.NoError(t, err)
	assert.Equal(t, []Money{{amount: 1250, currency: "EUR"}}, out)
}

func TestDecode_ImmutableNestedOnDots(t *testing.T) {
	rows := databasetest.NewRows(
		[]string{"id", "total.amount", "total.currency_code"},
		[]any{"inv-1", int64(99), "USD"},
		[]any{nil, nil, nil},
	)

	out, err := Collect[*Invoice](New(), rows)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NotNil(t, out[0])
	assert.Equal(t, Invoice{id: "inv-1", total: Money{amount: 99, currency: "USD"}}, *out[0])
	assert.Nil(t, out[1])
}

// =========================================================================
// Plans and iteration
// =========================================================================

func TestPlan_CachedPerShape(t *testing.T) {
	d := New()
	cols := []database.Column{{Name: "id", TypeName: "int8"}}

	p1, err := d.Plan(reflect.TypeFor[Person](), cols)
	require.NoError(t, err)
	p2, err := d.Plan(reflect.TypeFor[Person](), cols)
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	p3, err := d.Plan(reflect.TypeFor[Person](), []database.Column{{Name: "id", TypeName: "text"}})
	require.NoError(t, err)
	assert.NotSame(t, p1, p3)
	assert.Equal(t, 2, d.Cached())
}

func TestPlan_NoColumns(t *testing.T) {
	_, err := New().Plan(reflect.TypeFor[int](), nil)
	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestPlan_RowWidthMismatch(t *testing.T) {
	p, err := New().Plan(reflect.TypeFor[Person](), []database.Column{{Name: "id"}})
	require.NoError(t, err)

	_, err = p.Decode([]any{int64(1), "extra"})
	assert.ErrorIs(t, err, ErrColumnCount)
}

func TestDecode_EarlyStopClosesRows(t *testing.T) {
	rows := databasetest.NewRows([]string{"n"}, []any{int64(1)}, []any{int64(2)}, []any{int64(3)})

	var seen []int64
	for v, err := range Decode[int64](nil, rows) {
		require.NoError(t, err)
		seen = append(seen, v)
		break
	}
	assert.Equal(t, []int64{1}, seen)
	assert.True(t, rows.Closed())
}

func TestDecode_RowsErrSurfaces(t *testing.T) {
	rows := databasetest.NewRows([]string{"n"}, []any{int64(1)})
	rows.Failure = errors.New("connection reset")

	_, err := Collect[int64](nil, rows)
	assert.EqualError(t, err, "connection reset")
}
