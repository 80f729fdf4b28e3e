// Package agendamento holds typed helpers for the appointment table
// (agendamentos). Every helper is a single parameterized statement run
// through core.DB.Query; the table itself is owned by the database schema.
package agendamento

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shrek82/estetica-db/core"
	"github.com/shrek82/estetica-db/validator"
)

// Table is the appointment table name.
const Table = "agendamentos"

// DateLayout is the wire format of data_agendamento bind values.
const DateLayout = "2006-01-02"

// Column names.
const (
	ColID                = "id"
	ColNomePessoa        = "nome_pessoa"
	ColContatoTelefonico = "contato_telefonico"
	ColEmail             = "email"
	ColDataAgendamento   = "data_agendamento"
)

// Agendamento is one appointment record.
type Agendamento struct {
	ID                int64
	NomePessoa        string
	ContatoTelefonico string
	Email             string
	DataAgendamento   time.Time
}

var rules = validator.Rules{
	"NomePessoa":        {validator.Required, validator.MinLen(2), validator.MaxLen(255)},
	"ContatoTelefonico": {validator.Required, validator.MaxLen(20)},
	"Email":             {validator.Required, validator.Email, validator.MaxLen(255)},
	"DataAgendamento":   {validator.Required},
}

// Validate checks the fields an insert requires.
func (a *Agendamento) Validate() error {
	return rules.Validate(a)
}

// Form is an appointment as typed on the command line, every field as text.
type Form struct {
	NomePessoa        string
	ContatoTelefonico string
	Email             string
	// DataAgendamento is a DateLayout date, e.g. 2024-10-05.
	DataAgendamento string
}

var formRules = validator.Rules{
	"NomePessoa": {validator.Required, validator.MinLen(2), validator.MaxLen(255)},
	"ContatoTelefonico": {
		validator.Required,
		validator.Numeric.Msg("must contain only digits, without spaces or punctuation"),
		validator.MinLen(8),
		validator.MaxLen(20),
	},
	"Email":           {validator.Required, validator.Email, validator.MaxLen(255)},
	"DataAgendamento": {validator.Required, validator.Datetime(DateLayout)},
}

// Parse validates f and converts it to an Agendamento.
func (f Form) Parse() (Agendamento, error) {
	if err := formRules.Validate(f); err != nil {
		return Agendamento{}, err
	}
	day, err := time.Parse(DateLayout, f.DataAgendamento)
	if err != nil {
		return Agendamento{}, err
	}
	return Agendamento{
		NomePessoa:        f.NomePessoa,
		ContatoTelefonico: f.ContatoTelefonico,
		Email:             f.Email,
		DataAgendamento:   day,
	}, nil
}

// Querier is the executor the store runs statements on; *core.DB satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, params ...any) (*core.Result, error)
}

// Store runs the appointment statements.
type Store struct {
	q Querier
}

// NewStore returns a Store running on q.
func NewStore(q Querier) *Store {
	return &Store{q: q}
}

// Insert adds one appointment and returns the affected row count.
func (s *Store) Insert(ctx context.Context, a Agendamento) (int64, error) {
	if err := a.Validate(); err != nil {
		return 0, fmt.Errorf("invalid agendamento: %w", err)
	}
	res, err := s.q.Query(ctx,
		"INSERT INTO "+Table+" (nome_pessoa, contato_telefonico, email, data_agendamento) VALUES (?, ?, ?, ?)",
		a.NomePessoa, a.ContatoTelefonico, a.Email, a.DataAgendamento.Format(DateLayout),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// FindByName returns the appointments whose name equals name.
func (s *Store) FindByName(ctx context.Context, name string) ([]Agendamento, error) {
	return s.find(ctx, "SELECT * FROM "+Table+" WHERE nome_pessoa = ?", name)
}

// FindByNameContaining returns the appointments whose name contains fragment.
// LIKE wildcards in fragment match literally.
func (s *Store) FindByNameContaining(ctx context.Context, fragment string) ([]Agendamento, error) {
	return s.find(ctx, "SELECT * FROM "+Table+" WHERE nome_pessoa LIKE ? ESCAPE '!'", "%"+escapeLike(fragment)+"%")
}

// FindByDateRange returns the appointments dated within [start, end], by calendar day.
func (s *Store) FindByDateRange(ctx context.Context, start, end time.Time) ([]Agendamento, error) {
	return s.find(ctx,
		"SELECT * FROM "+Table+" WHERE data_agendamento >= ? AND data_agendamento <= ? ORDER BY data_agendamento",
		start.Format(DateLayout), end.Format(DateLayout),
	)
}

// UpdatePhone sets contato_telefonico on the appointments named name and
// returns the affected row count.
func (s *Store) UpdatePhone(ctx context.Context, name, phone string) (int64, error) {
	res, err := s.q.Query(ctx, "UPDATE "+Table+" SET contato_telefonico = ? WHERE nome_pessoa = ?", phone, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// DeleteByName removes the appointments named name.
func (s *Store) DeleteByName(ctx context.Context, name string) (int64, error) {
	res, err := s.q.Query(ctx, "DELETE FROM "+Table+" WHERE nome_pessoa = ?", name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// DeleteAll empties the table.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.q.Query(ctx, "DELETE FROM "+Table)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

func (s *Store) find(ctx context.Context, sql string, params ...any) ([]Agendamento, error) {
	res, err := s.q.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	out := make([]Agendamento, 0, res.Len())
	for _, row := range res.Rows {
		a, err := FromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// FromRow decodes a result row. The id column is optional.
func FromRow(row core.Row) (Agendamento, error) {
	a := Agendamento{
		NomePessoa:        row.String(ColNomePessoa),
		ContatoTelefonico: row.String(ColContatoTelefonico),
		Email:             row.String(ColEmail),
	}
	if _, ok := row[ColID]; ok {
		id, err := row.Int64(ColID)
		if err != nil {
			return a, err
		}
		a.ID = id
	}
	if row[ColDataAgendamento] != nil {
		t, err := row.Time(ColDataAgendamento)
		if err != nil {
			return a, err
		}
		a.DataAgendamento = t
	}
	return a, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
