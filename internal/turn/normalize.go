package turn

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// #region aliases

// aliases folds historical meta keys onto the canonical Context field names.
// Keys are compared after lowercasing and stripping '_' and '-'.
var aliases = map[string]string{
	"version":            "version",
	"v":                  "version",
	"conversationid":     "conversationId",
	"convid":             "conversationId",
	"cid":                "conversationId",
	"threadid":           "conversationId",
	"turnid":             "turnId",
	"tid":                "turnId",
	"messageid":          "turnId",
	"text":               "text",
	"utterance":          "text",
	"input":              "text",
	"usertext":           "text",
	"history":            "history",
	"messages":           "history",
	"now":                "now",
	"at":                 "now",
	"timestamp":          "now",
	"choiceid":           "choiceId",
	"choice":             "choiceId",
	"selectedchoice":     "choiceId",
	"actionid":           "actionId",
	"action":             "actionId",
	"declarationok":      "declarationOk",
	"declared":           "declarationOk",
	"declaration":        "declarationOk",
	"deepenok":           "deepenOk",
	"deepen":             "deepenOk",
	"allowdeepen":        "deepenOk",
	"intentconfirmed":    "intentConfirmed",
	"commitintent":       "intentConfirmed",
	"commitflag":         "intentConfirmed",
	"goalkind":           "goalKind",
	"goalkindhint":       "goalKind",
	"goal":               "goalKind",
	"hardstop":           "hardStop",
	"stop":               "hardStop",
	"forceact":           "hardStop",
	"allowllm":           "allowLLM",
	"llm":                "allowLLM",
	"allowrender":        "allowRender",
	"render":             "allowRender",
	"repeatsignal":       "repeatSignal",
	"repeat":             "repeatSignal",
	"flowdelta":          "flowDelta",
	"flow":               "flowDelta",
	"anchorreason":       "anchorReason",
	"convreason":         "convReason",
	"conversationreason": "convReason",
}

func canonicalKey(k string) (string, bool) {
	folded := strings.ToLower(k)
	folded = strings.NewReplacer("_", "", "-", "").Replace(folded)
	canon, ok := aliases[folded]
	return canon, ok
}

// #endregion aliases

// #region normalize

// Normalize builds a Context from a loosely-typed meta map. Alias keys are
// folded first; when two aliases name the same field the canonical spelling
// wins, otherwise the later key in sorted order wins. Unknown keys are
// ignored. Missing TurnID and Now are filled in.
func Normalize(raw map[string]any) (Context, error) {
	folded := make(map[string]any, len(raw))
	exact := make(map[string]bool, len(raw))
	for _, k := range sortedKeys(raw) {
		canon, ok := canonicalKey(k)
		if !ok {
			continue
		}
		if exact[canon] {
			continue
		}
		folded[canon] = raw[k]
		if k == canon {
			exact[canon] = true
		}
	}

	var out Context
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           &out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			historyRoleHook,
		),
	})
	if err != nil {
		return Context{}, fmt.Errorf("turn decoder: %w", err)
	}
	if err := dec.Decode(folded); err != nil {
		return Context{}, fmt.Errorf("normalize turn meta: %w", err)
	}

	out.Version = Version
	out.HardStop = HardStop(strings.ToUpper(strings.TrimSpace(string(out.HardStop))))
	out.GoalKind = GoalKind(strings.ToLower(strings.TrimSpace(string(out.GoalKind))))
	switch out.HardStop {
	case StopNone, StopSilence, StopBlock, StopError:
	default:
		return Context{}, fmt.Errorf("normalize turn meta: unknown hard stop %q", out.HardStop)
	}
	switch out.GoalKind {
	case "", GoalStabilize, GoalUncover, GoalForward:
	default:
		out.GoalKind = ""
	}
	if out.TurnID == "" {
		out.TurnID = uuid.New().String()
	}
	if out.Now.IsZero() {
		out.Now = time.Now().UTC()
	}
	return out.WithHistory(out.History), nil
}

// historyRoleHook accepts {"role":..,"content":..} history entries by
// mapping content onto text.
func historyRoleHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(Message{}) {
		return data, nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		return data, nil
	}
	if _, has := m["text"]; has {
		return data, nil
	}
	c, ok := m["content"]
	if !ok {
		return data, nil
	}
	cp := make(map[string]any, len(m)+1)
	for k, v := range m {
		cp[k] = v
	}
	cp["text"] = c
	return cp, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// #endregion normalize
