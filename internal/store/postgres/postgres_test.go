// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package postgres

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azimuth-mud/azimuth/internal/world"
	"github.com/azimuth-mud/azimuth/pkg/errutil"
)

func testObject() *world.Object {
	id := ulid.Make()
	return &world.Object{
		ID:       id,
		Name:     "Brass Lamp",
		Aliases:  []string{"Lamp"},
		Owner:    id,
		Location: ulid.Make(),
		Properties: map[string]world.Value{
			"lit": world.Bool(true),
		},
	}
}

func TestStore_LoadWorld(t *testing.T) {
	obj := testObject()
	data, err := json.Marshal(obj)
	require.NoError(t, err)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantLen   int
		wantCode  string
		wantErr   bool
	}{
		{
			name: "decodes every row",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"id", "data"}).
					AddRow(obj.ID.String(), data)
				mock.ExpectQuery(`SELECT id, data FROM objects WHERE world_id`).
					WithArgs("W1").
					WillReturnRows(rows)
			},
			wantLen: 1,
		},
		{
			name: "empty world",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, data FROM objects`).
					WithArgs("W1").
					WillReturnRows(pgxmock.NewRows([]string{"id", "data"}))
			},
			wantLen: 0,
		},
		{
			name: "corrupt row",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"id", "data"}).
					AddRow(obj.ID.String(), []byte("{not json"))
				mock.ExpectQuery(`SELECT id, data FROM objects`).
					WithArgs("W1").
					WillReturnRows(rows)
			},
			wantErr:  true,
			wantCode: "CORRUPT_OBJECT",
		},
		{
			name: "missing table",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, data FROM objects`).
					WithArgs("W1").
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UndefinedTable, Message: "relation \"objects\" does not exist"})
			},
			wantErr:  true,
			wantCode: CodeSchemaMissing,
		},
		{
			name: "connection error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, data FROM objects`).
					WithArgs("W1").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()
			tt.setupMock(mock)

			got, err := New(mock).LoadWorld(t.Context(), "W1")
			if tt.wantErr {
				require.Error(t, err)
				if tt.wantCode != "" {
					errutil.AssertErrorCode(t, err, tt.wantCode)
				}
			} else {
				require.NoError(t, err)
				assert.Len(t, got, tt.wantLen)
				if tt.wantLen > 0 {
					assert.Equal(t, obj.ID, got[0].ID)
					lit, ok := got[0].Property("lit")
					require.True(t, ok)
					assert.True(t, lit.Truthy())
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestStore_SaveObject(t *testing.T) {
	obj := testObject()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		errMsg    string
	}{
		{
			name: "upserts with lower-cased search names",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO objects`).
					WithArgs("W1", obj.ID.String(), "Brass Lamp", []string{"brass lamp", "lamp"}, pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "write error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO objects`).
					WillReturnError(errors.New("disk full"))
			},
			wantErr: true,
			errMsg:  "disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()
			tt.setupMock(mock)

			err = New(mock).SaveObject(t.Context(), "W1", obj)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				errutil.AssertErrorContext(t, err, "object_id", obj.ID.String())
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestStore_DeleteObject(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := ulid.Make()
	mock.ExpectExec(`DELETE FROM objects WHERE world_id`).
		WithArgs("W1", id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, New(mock).DeleteObject(t.Context(), "W1", id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindByName(t *testing.T) {
	a, b := ulid.Make(), ulid.Make()

	tests := []struct {
		name      string
		query     string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      []ulid.ULID
		wantCode  string
	}{
		{
			name:  "normalizes the name",
			query: "  LAMP ",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id FROM objects WHERE world_id = \$1 AND \$2 = ANY\(names\)`).
					WithArgs("W1", "lamp").
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(a.String()).AddRow(b.String()))
			},
			want: []ulid.ULID{a, b},
		},
		{
			name:  "no match",
			query: "sword",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id FROM objects`).
					WithArgs("W1", "sword").
					WillReturnRows(pgxmock.NewRows([]string{"id"}))
			},
			want: nil,
		},
		{
			name:  "bad id in table",
			query: "lamp",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id FROM objects`).
					WithArgs("W1", "lamp").
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("not-a-ulid"))
			},
			wantCode: "CORRUPT_OBJECT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setupMock(mock)

			got, err := New(mock).FindByName(t.Context(), "W1", tt.query)
			if tt.wantCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_WorldExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("W1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := New(mock).WorldExists(t.Context(), "W1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(errors.New("gone"))
	err = New(mock).Ping(t.Context())
	errutil.AssertErrorCode(t, err, "DB_PING_FAILED")
	assert.NoError(t, mock.ExpectationsWereMet())
}
