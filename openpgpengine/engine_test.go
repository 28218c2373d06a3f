package openpgpengine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

func newTestEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("Test User", "", "test@example.org", &packet.Config{})
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}
	return entity
}

func armoredSecretKeyRing(t *testing.T, entity *openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatalf("armor.Encode: %v", err)
	}
	if err := entity.SerializePrivate(w, &packet.Config{}); err != nil {
		t.Fatalf("SerializePrivate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing armor writer: %v", err)
	}
	return buf.Bytes()
}

func TestHostListAndExport(t *testing.T) {
	entity := newTestEntity(t)
	armored := armoredSecretKeyRing(t, entity)

	host, err := NewHost(bytes.NewReader(armored))
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}

	keys := host.List()
	if len(keys) != 1 {
		t.Fatalf("List() returned %d keys, want 1", len(keys))
	}
	if len(keys[0].UserIDs) != 1 || keys[0].UserIDs[0] == "" {
		t.Fatalf("List()[0].UserIDs = %v, want one non-empty user ID", keys[0].UserIDs)
	}

	exported, err := host.Export(keys[0].KeyID)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	block, err := armor.Decode(bytes.NewReader(exported))
	if err != nil {
		t.Fatalf("exported key is not armored: %v", err)
	}
	if block.Type != openpgp.PrivateKeyType {
		t.Fatalf("exported armor type = %q, want %q", block.Type, openpgp.PrivateKeyType)
	}
}

func TestHostExportUnknownKeyID(t *testing.T) {
	entity := newTestEntity(t)
	host, err := NewHost(bytes.NewReader(armoredSecretKeyRing(t, entity)))
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	if _, err := host.Export("0000000000000000"); err != ErrNoSuchKey {
		t.Fatalf("Export unknown key = %v, want %v", err, ErrNoSuchKey)
	}
}

func TestEphemeralImportAndClose(t *testing.T) {
	entity := newTestEntity(t)
	armored := armoredSecretKeyRing(t, entity)

	eph, err := NewEphemeral(t.TempDir())
	if err != nil {
		t.Fatalf("NewEphemeral: %v", err)
	}
	if _, err := os.Stat(eph.Dir()); err != nil {
		t.Fatalf("ephemeral dir not created: %v", err)
	}

	infos, err := eph.Import(armored)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("Import returned %d keys, want 1", len(infos))
	}

	if err := eph.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(eph.Dir()); !os.IsNotExist(err) {
		t.Fatalf("ephemeral dir still exists after Close")
	}
}

func TestNewEphemeralUniqueDirs(t *testing.T) {
	base := t.TempDir()
	a, err := NewEphemeral(base)
	if err != nil {
		t.Fatalf("NewEphemeral: %v", err)
	}
	b, err := NewEphemeral(base)
	if err != nil {
		t.Fatalf("NewEphemeral: %v", err)
	}
	if a.Dir() == b.Dir() {
		t.Fatalf("two ephemeral homedirs collided: %s", a.Dir())
	}
	if filepath.Dir(a.Dir()) != base {
		t.Fatalf("ephemeral dir %s not under base %s", a.Dir(), base)
	}
}
