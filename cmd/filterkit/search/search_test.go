package search

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/sirupsen/logrus"

	"github.com/libregraph/filterkit/cmd"
	"github.com/libregraph/filterkit/cmd/filterkit/boltdb/load"
	"github.com/libregraph/filterkit/pkg/ldapfilter"
)

var logger = &logrus.Logger{
	Out:       os.Stderr,
	Formatter: &logrus.TextFormatter{},
	Level:     logrus.InfoLevel,
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		scope string
		want  int
		err   bool
	}{
		{"base", ldap.ScopeBaseObject, false},
		{"one", ldap.ScopeSingleLevel, false},
		{"SUB", ldap.ScopeWholeSubtree, false},
		{"", ldap.ScopeWholeSubtree, false},
		{"children", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseScope(tt.scope)
		if (err != nil) != tt.err {
			t.Errorf("ParseScope(%q) unexpected error %v", tt.scope, err)
		}
		if got != tt.want {
			t.Errorf("ParseScope(%q) expected %d got %d", tt.scope, tt.want, got)
		}
	}
}

func setupLDIFSearch(t *testing.T, pageSize uint32, sizeLimit int) {
	t.Helper()
	LDIFFile = "testdata/people.ldif"
	BaseDN = "dc=example,dc=org"
	SizeLimit = sizeLimit
	Attributes = nil
	cmd.DefaultPageSize = pageSize
	t.Cleanup(func() {
		LDIFFile, BaseDN, SizeLimit, Attributes = "", "", 0, nil
		cmd.DefaultPageSize = 0
	})
}

func uids(entries []*ldap.Entry) string {
	result := []string{}
	for _, entry := range entries {
		result = append(result, entry.GetAttributeValue("uid"))
	}
	sort.Strings(result)
	return strings.Join(result, ",")
}

func TestSearchLDIF(t *testing.T) {
	tests := []struct {
		name      string
		filter    string
		pageSize  uint32
		sizeLimit int
		want      string
		count     int
	}{
		{"all", "(objectClass=inetOrgPerson)", 0, 0, "alice,bob,carol", 3},
		{"paged", "(objectClass=inetOrgPerson)", 1, 0, "alice,bob,carol", 3},
		{"paged partial", "(mail=*)", 2, 0, "alice,bob,carol", 3},
		{"substring", "(sn=*r*)", 0, 0, "alice,bob,carol", 3},
		{"negation", "(&(uid=*)(!(cn=bob*)))", 0, 0, "alice,carol", 2},
		{"size limit paged", "(uid=*)", 1, 2, "", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupLDIFSearch(t, tt.pageSize, tt.sizeLimit)
			entries, err := searchLDIF(context.Background(), logger, ldapfilter.Parse(tt.filter), ldap.ScopeWholeSubtree)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(entries) != tt.count {
				t.Errorf("Expected %d entries got %d", tt.count, len(entries))
			}
			if tt.want != "" && uids(entries) != tt.want {
				t.Errorf("Expected %s got %s", tt.want, uids(entries))
			}
		})
	}
}

func TestSearchWritesLDIF(t *testing.T) {
	setupLDIFSearch(t, 0, 0)
	Attributes = []string{"uid", "mail"}
	Scope = "sub"

	var buf bytes.Buffer
	if err := search(context.Background(), &buf, "(uid=bob)"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	output := buf.String()
	for _, s := range []string{"dn: uid=bob,dc=example,dc=org", "uid: bob", "mail: bob@lg.local"} {
		if !strings.Contains(output, s) {
			t.Errorf("Expected output to contain %q, got:\n%s", s, output)
		}
	}
	if strings.Contains(output, "cn:") {
		t.Errorf("Unexpected attribute in output:\n%s", output)
	}
}

func TestSearchErrors(t *testing.T) {
	setupLDIFSearch(t, 0, 0)

	err := search(context.Background(), &bytes.Buffer{}, "(uid=bob")
	if code := cmd.ExitCode(err); code != cmd.ExitCodeInvalidFilter {
		t.Errorf("Expected exit code %d got %d (%v)", cmd.ExitCodeInvalidFilter, code, err)
	}

	LDIFFile = ""
	err = search(context.Background(), &bytes.Buffer{}, "(uid=bob)")
	if code := cmd.ExitCode(err); code != cmd.ExitCodeStartupError {
		t.Errorf("Expected exit code %d got %d (%v)", cmd.ExitCodeStartupError, code, err)
	}
}

const boltLDIF = `dn: dc=example,dc=org
objectClass: organization
o: Example

dn: uid=alice,dc=example,dc=org
objectClass: inetOrgPerson
uid: alice
cn: Alice Arnold
sn: Arnold
mail: alice@lg.local
`

func setupBoltDBSearch(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	ldifFile := filepath.Join(dir, "people.ldif")
	if err := os.WriteFile(ldifFile, []byte(boltLDIF), 0o600); err != nil {
		t.Fatalf("Failed to write LDIF: %v", err)
	}
	dbFile := filepath.Join(dir, "people.db")
	if err := load.NewLDIFLoader(logger, dbFile, "dc=example,dc=org").Load(ldifFile); err != nil {
		t.Fatalf("Failed to load LDIF: %v", err)
	}

	BoltDBFile = dbFile
	BaseDN = "dc=example,dc=org"
	SizeLimit = 0
	Attributes = nil
	t.Cleanup(func() {
		BoltDBFile, BaseDN, SizeLimit, Attributes = "", "", 0, nil
	})
}

func TestSearchBoltDBAttributes(t *testing.T) {
	allAttributes := []string{"objectClass", "uid", "cn", "sn", "mail"}
	tests := []struct {
		name       string
		attributes []string
		want       []string
	}{
		{"none given", nil, allAttributes},
		{"all user attributes", []string{"*"}, allAttributes},
		{"no attributes", []string{"1.1"}, nil},
		{"named in entry order", []string{"MAIL", "uid", "missing"}, []string{"uid", "mail"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupBoltDBSearch(t)
			Attributes = tt.attributes

			entries, err := searchBoltDB(logger, ldapfilter.Parse("(uid=alice)"), ldap.ScopeWholeSubtree)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("Expected 1 entry got %d", len(entries))
			}
			var got []string
			for _, attribute := range entries[0].Attributes {
				got = append(got, attribute.Name)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Expected attributes %v got %v", tt.want, got)
			}
		})
	}
}

func TestSearchBoltDBWritesLDIF(t *testing.T) {
	setupBoltDBSearch(t)
	Attributes = []string{"1.1"}
	Scope = "sub"

	var buf bytes.Buffer
	if err := search(context.Background(), &buf, "(uid=alice)"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "dn: uid=alice,dc=example,dc=org") {
		t.Errorf("Expected output to contain the DN, got:\n%s", output)
	}
	if strings.Contains(output, "uid: alice") {
		t.Errorf("Unexpected attribute in output:\n%s", output)
	}
}
