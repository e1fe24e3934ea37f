package clean

import (
	"strings"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/JonMunkholm/moodlelogsmart/internal/detect"
	"github.com/JonMunkholm/moodlelogsmart/internal/table"
)

// Roles maps a user's full name to their Moodle role id.
type Roles map[string]string

var (
	nameHeaders = []string{"user full name", "user_full_name", "full name", "nome completo", "name", "nome"}
	roleHeaders = []string{"role id", "role_id", "roleid", "role", "papel"}
)

// LoadRoles reads a role directory CSV with a user name column and a role id
// column. Headers are matched by name; without a match the first two columns
// are used.
func LoadRoles(path string) (Roles, error) {
	format, err := detect.New().Detect(path)
	if err != nil {
		return nil, err
	}
	tbl, err := table.Load(path, format)
	if err != nil {
		return nil, err
	}
	if len(tbl.Header) < 2 {
		return nil, core.Errorf(core.KindStructureInvalid, "role directory needs a name and a role column")
	}

	nameIdx := headerIndex(tbl.Header, nameHeaders, 0)
	roleIdx := headerIndex(tbl.Header, roleHeaders, 1)
	if nameIdx == roleIdx {
		return nil, core.Errorf(core.KindStructureInvalid, "role directory name and role columns are the same")
	}

	roles := make(Roles, tbl.Len())
	for _, row := range tbl.Rows {
		name := strings.TrimSpace(row[nameIdx])
		role := strings.TrimSpace(row[roleIdx])
		if name == "" || role == "" {
			continue
		}
		roles[name] = role
	}
	return roles, nil
}

func headerIndex(header, candidates []string, fallback int) int {
	for _, c := range candidates {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), c) {
				return i
			}
		}
	}
	return fallback
}

// Attach returns a copy of events with RoleID set for every listed user.
// Unlisted users keep whatever RoleID they had.
func (r Roles) Attach(events []core.RawEvent) []core.RawEvent {
	out := clone(events)
	if len(r) == 0 {
		return out
	}
	for i := range out {
		if role, ok := r[strings.TrimSpace(out[i].UserFullName)]; ok {
			out[i].RoleID = role
		}
	}
	return out
}
