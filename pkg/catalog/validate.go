package catalog

import "fmt"

// requiredFields lists the credential bundle keys a source of each kind must
// carry before the factory can build a live handler from it.
var requiredFields = map[SourceKind][]string{
	KindOutlook:   {"tenant_id", "graph_client_id", "graph_client_secret", "graph_user_id"},
	KindSnowflake: {"snowflake_account_url", "snowflake_pat", "snowflake_semantic_model_file", "snowflake_cortex_search_service"},
	KindBox:       {"box_client_id", "box_client_secret", "box_subject_type", "box_subject_id"},
}

// RequiredFields returns the mandatory metadata keys for a kind.
func RequiredFields(kind SourceKind) []string {
	return requiredFields[kind]
}

// ValidateMetadata checks a credential bundle for the given kind. Called at
// admin write time; the handler factory re-checks at build time and skips
// rows that predate validation.
func ValidateMetadata(kind SourceKind, metadata map[string]string) error {
	if !kind.Valid() {
		return fmt.Errorf("unsupported source type: %s", kind)
	}
	for _, f := range requiredFields[kind] {
		if metadata[f] == "" {
			return fmt.Errorf("%s: missing required field %q", kind, f)
		}
	}
	return nil
}
