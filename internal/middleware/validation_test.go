package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "pangandash/internal/errors"
	"pangandash/internal/services"
	"pangandash/pkg/contracts/domain"
)

type sheetImport struct {
	SpreadsheetID string `json:"spreadsheet_id" validate:"required"`
	Range         string `json:"range" validate:"required"`
	HeaderRow     int    `json:"header_row" validate:"gte=0,lte=50"`
	Kind          string `json:"kind,omitempty" validate:"omitempty,tablekind"`
}

func TestDecodeJSON(t *testing.T) {
	v := NewValidationMiddleware(discardLogger())

	tests := []struct {
		name      string
		body      string
		wantCode  string
		wantField string
	}{
		{name: "valid", body: `{"spreadsheet_id":"abc","range":"Sheet1!A:Z","header_row":1}`},
		{name: "missing id", body: `{"range":"Sheet1"}`, wantCode: "VALIDATION_FAILED", wantField: "spreadsheet_id"},
		{name: "header row too big", body: `{"spreadsheet_id":"a","range":"b","header_row":99}`, wantCode: "VALIDATION_FAILED", wantField: "header_row"},
		{name: "unknown kind", body: `{"spreadsheet_id":"a","range":"b","kind":"ternak"}`, wantCode: "VALIDATION_FAILED", wantField: "kind"},
		{name: "unknown field", body: `{"spreadsheet_id":"a","range":"b","extra":1}`, wantCode: "INVALID_REQUEST"},
		{name: "malformed", body: `{`, wantCode: "INVALID_REQUEST"},
		{name: "empty", body: ``, wantCode: "VALIDATION_FAILED", wantField: "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst sheetImport
			err := v.DecodeJSON(req, &dst)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, "abc", dst.SpreadsheetID)
				assert.Equal(t, 1, dst.HeaderRow)
				return
			}

			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
			if tt.wantField != "" {
				details, ok := apiErr.Details.([]apierrors.ValidationError)
				require.True(t, ok)
				require.Len(t, details, 1)
				assert.Equal(t, tt.wantField, details[0].Field)
			}
		})
	}
}

func TestValidateStructCustomRules(t *testing.T) {
	v := NewValidationMiddleware(discardLogger())

	type clientFile struct {
		File string `json:"file" validate:"filename"`
	}

	tests := []struct {
		name      string
		value     interface{}
		wantField string
	}{
		{name: "sheet import for known kind", value: &services.SheetImportRequest{Kind: "kemandirian-dusun", SpreadsheetID: "abc", Range: "A:Z"}},
		{name: "sheet import for unknown kind", value: &services.SheetImportRequest{Kind: "panen", SpreadsheetID: "abc", Range: "A:Z"}, wantField: "Kind"},
		{name: "plain file name", value: &clientFile{File: "rumah tangga.xlsx"}},
		{name: "parent directory", value: &clientFile{File: "../rumah.xlsx"}, wantField: "file"},
		{name: "nested path", value: &clientFile{File: "data/rumah.xlsx"}, wantField: "file"},
		{name: "empty name", value: &clientFile{}, wantField: "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.value)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}

			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			details, ok := apiErr.Details.([]apierrors.ValidationError)
			require.True(t, ok)
			require.Len(t, details, 1)
			assert.Equal(t, tt.wantField, details[0].Field)
		})
	}
}

func TestQueryParamValidatorInt(t *testing.T) {
	q := NewQueryParamValidator(discardLogger())

	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 0},
		{query: "header_row=2", want: 2},
		{query: "header_row=-1", wantErr: true},
		{query: "header_row=x", wantErr: true},
		{query: "header_row=51", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := q.Int(httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil), "header_row", 0, 50, 0)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryParamValidatorEnum(t *testing.T) {
	q := NewQueryParamValidator(discardLogger())
	allowed := []string{"csv", "xlsx"}

	got, err := q.Enum(httptest.NewRequest(http.MethodGet, "/", nil), "format", allowed, "csv")
	require.NoError(t, err)
	assert.Equal(t, "csv", got)

	got, err = q.Enum(httptest.NewRequest(http.MethodGet, "/?format=xlsx", nil), "format", allowed, "csv")
	require.NoError(t, err)
	assert.Equal(t, "xlsx", got)

	_, err = q.Enum(httptest.NewRequest(http.MethodGet, "/?format=pdf", nil), "format", allowed, "csv")
	assert.EqualError(t, err, "Request validation failed")
}

func TestQueryParamValidatorFilter(t *testing.T) {
	q := NewQueryParamValidator(discardLogger())

	sel, err := q.Filter(httptest.NewRequest(http.MethodGet, "/?filter_column=Dusun&filter_value=Krajan&filter_value=Sumber+Rejo", nil))
	require.NoError(t, err)
	assert.Equal(t, domain.FilterSelection{Column: "Dusun", Values: []string{"Krajan", "Sumber Rejo"}}, sel)

	sel, err = q.Filter(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.True(t, sel.IsEmpty())

	_, err = q.Filter(httptest.NewRequest(http.MethodGet, "/?filter_value=Krajan", nil))
	assert.Error(t, err)
	_, err = q.Filter(httptest.NewRequest(http.MethodGet, "/?filter_column=Dusun", nil))
	assert.Error(t, err)
}

func TestContentTypeValidator(t *testing.T) {
	h := ContentTypeValidator("multipart/form-data")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
