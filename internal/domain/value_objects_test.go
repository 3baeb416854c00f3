package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTitle(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "valid title", input: "Buy groceries", want: "Buy groceries"},
		{name: "single character", input: "x", want: "x"},
		{name: "max length", input: strings.Repeat("a", 255), want: strings.Repeat("a", 255)},
		{name: "max length multibyte", input: strings.Repeat("ü", 255), want: strings.Repeat("ü", 255)},
		{name: "trims whitespace", input: "  padded  ", want: "padded"},
		{name: "empty", input: "", wantErr: ErrTitleRequired},
		{name: "whitespace only", input: "   ", wantErr: ErrTitleRequired},
		{name: "too long", input: strings.Repeat("a", 256), wantErr: ErrTitleTooLong},
		{name: "too long multibyte", input: strings.Repeat("ü", 256), wantErr: ErrTitleTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, err := NewTitle(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, title.String())
		})
	}
}

func TestNewDescription(t *testing.T) {
	t.Run("empty is valid", func(t *testing.T) {
		d, err := NewDescription("")
		require.NoError(t, err)
		assert.Equal(t, "", d.String())
	})

	t.Run("max length", func(t *testing.T) {
		_, err := NewDescription(strings.Repeat("a", 2000))
		assert.NoError(t, err)
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		_, err := NewDescription(strings.Repeat("世", 2000))
		assert.NoError(t, err)
	})

	t.Run("too long", func(t *testing.T) {
		_, err := NewDescription(strings.Repeat("a", 2001))
		assert.ErrorIs(t, err, ErrDescriptionTooLong)
	})

	t.Run("too long multibyte", func(t *testing.T) {
		_, err := NewDescription(strings.Repeat("世", 2001))
		assert.ErrorIs(t, err, ErrDescriptionTooLong)
	})
}

func TestNewTaskPriority(t *testing.T) {
	for _, valid := range []string{"low", "medium", "high", "critical", "HIGH", "Critical"} {
		p, err := NewTaskPriority(valid)
		require.NoError(t, err, valid)
		assert.Equal(t, strings.ToLower(valid), string(p))
	}

	for _, invalid := range []string{"", "urgent", "none", "1"} {
		_, err := NewTaskPriority(invalid)
		assert.ErrorIs(t, err, ErrInvalidPriority, invalid)
	}
}

func TestPriorityRank(t *testing.T) {
	low, _ := NewTaskPriority("low")
	medium, _ := NewTaskPriority("medium")
	high, _ := NewTaskPriority("high")
	critical, _ := NewTaskPriority("critical")

	assert.Greater(t, critical.Rank(), high.Rank())
	assert.Greater(t, high.Rank(), medium.Rank())
	assert.Greater(t, medium.Rank(), low.Rank())
	assert.Greater(t, low.Rank(), TaskPriority("").Rank())
}

func TestNewRecurrenceRule(t *testing.T) {
	for _, valid := range []string{"daily", "weekly", "monthly", "Daily"} {
		r, err := NewRecurrenceRule(valid)
		require.NoError(t, err, valid)
		assert.Equal(t, strings.ToLower(valid), string(r))
	}

	for _, invalid := range []string{"", "yearly", "biweekly"} {
		_, err := NewRecurrenceRule(invalid)
		assert.ErrorIs(t, err, ErrInvalidRecurrenceRule, invalid)
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil stays empty", input: nil, want: []string{}},
		{name: "drops empties", input: []string{"a", "", "  ", "b"}, want: []string{"a", "b"}},
		{name: "dedupes keeping order", input: []string{"b", "a", "b", "a"}, want: []string{"b", "a"}},
		{name: "trims", input: []string{" work ", "work"}, want: []string{"work"}},
		{name: "case sensitive", input: []string{"Work", "work"}, want: []string{"Work", "work"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.input))
		})
	}
}

func TestValidateRecurrence(t *testing.T) {
	daily := RecurrenceDaily

	assert.NoError(t, ValidateRecurrence(true, &daily))
	assert.NoError(t, ValidateRecurrence(false, nil))
	assert.ErrorIs(t, ValidateRecurrence(true, nil), ErrRecurrenceRuleRequired)
	assert.ErrorIs(t, ValidateRecurrence(false, &daily), ErrRecurrenceRuleForbidden)
}

func TestNewEventType(t *testing.T) {
	for _, valid := range []string{"created", "updated", "completed", "deleted"} {
		_, err := NewEventType(valid)
		assert.NoError(t, err, valid)
	}

	_, err := NewEventType("archived")
	assert.ErrorIs(t, err, ErrInvalidEventType)
}

func TestListTasksParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  ListTasksParams
		wantErr error
	}{
		{name: "zero value", params: ListTasksParams{}},
		{name: "all fields valid", params: ListTasksParams{SortBy: SortByPriority, SortOrder: "asc", Status: StatusFilterPending}},
		{name: "bad sort field", params: ListTasksParams{SortBy: "urgency"}, wantErr: ErrInvalidSortField},
		{name: "bad sort order", params: ListTasksParams{SortOrder: "down"}, wantErr: ErrInvalidSortOrder},
		{name: "bad status", params: ListTasksParams{Status: "done"}, wantErr: ErrInvalidStatusFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
