package turn

import "testing"

func TestParseIntent(t *testing.T) {
	cases := map[string]Intent{
		`{"intent":"memory_recall"}`:                    IntentMemoryRecall,
		"question_answering":                            IntentQuestionAnswering,
		"  Document_Search  ":                           IntentDocumentSearch,
		"```json\n{\"intent\":\"task_completion\"}\n```": IntentTaskCompletion,
		`{"intent":"world_domination"}`:                 IntentGeneralConversation,
		"gibberish":                                     IntentGeneralConversation,
		"":                                              IntentGeneralConversation,
	}
	for raw, want := range cases {
		if got := ParseIntent(raw); got != want {
			t.Errorf("ParseIntent(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestParseReflection(t *testing.T) {
	r := ParseReflection(`{"quality":"poor","issues":"too vague","needs_followup":true,"suggestion":"ask for details"}`)
	if r.Quality != "poor" || !r.NeedsFollowup || r.Suggestion != "ask for details" {
		t.Errorf("unexpected reflection: %+v", r)
	}
}

func TestParseReflectionMalformed(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"quality":""}`} {
		r := ParseReflection(raw)
		if r.Quality != "fair" {
			t.Errorf("ParseReflection(%q).Quality = %q, want fair", raw, r.Quality)
		}
		if r.NeedsFollowup {
			t.Errorf("ParseReflection(%q) should not request followup", raw)
		}
	}
}

func TestParseReflectionUnknownQuality(t *testing.T) {
	r := ParseReflection(`{"quality":"stellar","issues":""}`)
	if r.Quality != "fair" {
		t.Errorf("unknown quality should clamp to fair, got %q", r.Quality)
	}
}

func TestStateReset(t *testing.T) {
	st := &State{
		UserQuery:     "old",
		IntentResult:  IntentMemoryRecall,
		Plan:          Fallback(),
		FinalResponse: "previous answer",
		LastResponse:  "previous answer",
		ToolResults:   []string{"weather"},
	}
	st.Reset("new question")
	if st.UserQuery != "new question" {
		t.Errorf("UserQuery = %q", st.UserQuery)
	}
	if st.Plan != nil || st.IntentResult != "" || st.FinalResponse != "" || st.ToolResults != nil {
		t.Error("per-turn keys should be cleared")
	}
	if st.LastResponse != "previous answer" {
		t.Error("LastResponse must survive Reset")
	}
}
