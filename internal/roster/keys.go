package roster

import "strings"

// keyAliases maps semantic roles to the column spellings seen in the wild.
// First alias hit wins, so the more specific spellings come first.
var keyAliases = []struct {
	role    string
	aliases []string
}{
	{"participant_id", []string{"participant_id", "subject_id", "subject", "sub", "id", "participant"}},
	{"name", []string{"name", "full_name", "participant_name", "subject_name"}},
	{"first_name", []string{"first_name", "firstname", "given_name"}},
	{"last_name", []string{"last_name", "lastname", "surname", "family_name"}},
	{"age", []string{"age", "age_at_scan", "age_years"}},
	{"sex", []string{"sex", "gender"}},
	{"diagnosis", []string{"diagnosis", "condition", "group", "status"}},
	{"date_of_birth", []string{"dob", "date_of_birth", "birth_date"}},
	{"scan_date", []string{"scan_date", "date_scan", "session_date"}},
}

// identifyKeyColumns maps semantic roles to actual column headers by
// case-insensitive alias matching. Unmatched roles are absent from the map.
func identifyKeyColumns(columns []string) map[string]string {
	lower := make([]string, len(columns))
	for i, c := range columns {
		lower[i] = strings.ToLower(c)
	}

	keys := make(map[string]string)
	for _, entry := range keyAliases {
		for _, alias := range entry.aliases {
			if i := indexOf(lower, alias); i >= 0 {
				keys[entry.role] = columns[i]
				break
			}
		}
	}
	return keys
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}
