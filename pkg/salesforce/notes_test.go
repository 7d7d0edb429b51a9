package salesforce

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDealNote(t *testing.T) {
	var gotObject string
	var gotRecord map[string]any

	client := &mockClient{
		insertOneFn: func(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
			gotObject = sObjectName
			gotRecord = record
			return "002note", nil
		},
	}

	id, err := CreateDealNote(context.Background(), client, "006deal", "Audit Acme Corp", "## Verdict: GO")
	require.NoError(t, err)
	assert.Equal(t, "002note", id)
	assert.Equal(t, "Note", gotObject)
	assert.Equal(t, "Audit Acme Corp", gotRecord["Title"])
	assert.Equal(t, "## Verdict: GO", gotRecord["Body"])
	assert.Equal(t, "006deal", gotRecord["ParentId"])
}

func TestCreateDealNote_RequiresDealID(t *testing.T) {
	_, err := CreateDealNote(context.Background(), &mockClient{}, "", "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deal id is required")
}

func TestCreateDealNote_RequiresBody(t *testing.T) {
	_, err := CreateDealNote(context.Background(), &mockClient{}, "006deal", "title", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "note body is required")
}

func TestCreateDealNote_TruncatesLongTitle(t *testing.T) {
	var gotTitle string
	client := &mockClient{
		insertOneFn: func(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
			gotTitle = record["Title"].(string)
			return "002note", nil
		},
	}

	long := strings.Repeat("x", 120)
	_, err := CreateDealNote(context.Background(), client, "006deal", long, "body")
	require.NoError(t, err)
	assert.Len(t, gotTitle, maxNoteTitleLen)
}

func TestCreateDealNote_InsertError(t *testing.T) {
	client := &mockClient{
		insertOneFn: func(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
			return "", eris.New("sf: insert Note failed")
		},
	}

	_, err := CreateDealNote(context.Background(), client, "006deal", "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create note on deal 006deal")
}
