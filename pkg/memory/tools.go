package memory

import (
	"context"
	stderrors "errors"

	"github.com/jllopis/shopper/pkg/core"
	"github.com/jllopis/shopper/pkg/tools"
)

const (
	// AddPreferenceToolName is the registry name of the add tool.
	AddPreferenceToolName = "add_preference"
	// RecallPreferencesToolName is the registry name of the recall tool.
	RecallPreferencesToolName = "recall_preferences"
)

// AddPreferenceTool lets the loop remember a new user preference.
func AddPreferenceTool(store *PreferenceStore) core.Tool {
	return tools.NewFunc(AddPreferenceToolName,
		"Store a new user shopping preference for future personalization. Input: the preference as plain text.",
		[]core.Parameter{tools.TextParameter("preference statement")},
		func(ctx context.Context, input any) core.Result {
			id, err := store.Add(ctx, tools.AsString(input))
			if stderrors.Is(err, ErrEmptyText) {
				return core.OK(map[string]any{"added": false})
			}
			if err != nil {
				return core.FailFrom(err)
			}
			return core.OK(map[string]any{"added": true, "id": id})
		})
}

// RecallPreferencesTool lets the loop look up preferences related to a query.
func RecallPreferencesTool(store *PreferenceStore, k int) core.Tool {
	if k <= 0 {
		k = 3
	}
	return tools.NewFunc(RecallPreferencesToolName,
		"Look up stored user preferences related to a topic. Input: a short topic or question.",
		[]core.Parameter{tools.TextParameter("topic to look up")},
		func(ctx context.Context, input any) core.Result {
			records, err := store.Nearest(ctx, tools.AsString(input), k)
			if err != nil {
				return core.FailFrom(err)
			}
			texts := make([]string, 0, len(records))
			for _, r := range records {
				texts = append(texts, r.Text)
			}
			return core.OK(map[string]any{"preferences": texts})
		})
}
