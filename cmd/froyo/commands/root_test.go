package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecute_ShutsDownOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "failing command", args: []string{"data", "type", filepath.Join(t.TempDir(), "absent.json")}, wantErr: true},
		{name: "bad pointer", args: []string{"data", "tree", writeDoc(t, `{"a":1}`), "/missing"}, wantErr: true},
		{name: "success", args: []string{"data", "type", writeDoc(t, `{"a":1}`), "/a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &app{}
			cmd := newRootCommand(a, "test", "none", "never")
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tt.args)

			err := a.execute(context.Background(), cmd)
			if tt.wantErr && out.Len() != 0 {
				t.Errorf("unexpected output %q", out.String())
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("execute error = %v, wantErr %v", err, tt.wantErr)
			}
			if a.bridge == nil {
				t.Fatal("app was never initialized")
			}
			if a.tel != nil {
				t.Error("telemetry was not shut down")
			}
		})
	}
}

func TestApp_CloseBeforeInit(t *testing.T) {
	a := &app{}
	a.close()
	a.close()
}
