package field

import (
	"errors"
	"reflect"
	"testing"
)

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		first   Descriptor
		second  Descriptor
		wantErr error
	}{
		{
			name:   "distinct id and name",
			first:  Descriptor{ID: 0x1f9, Name: "mode"},
			second: Descriptor{ID: 0x1fa, Name: "fan_mode"},
		},
		{
			name:    "duplicate id",
			first:   Descriptor{ID: 0x1f9, Name: "mode"},
			second:  Descriptor{ID: 0x1f9, Name: "other"},
			wantErr: ErrDuplicateID,
		},
		{
			name:    "duplicate name",
			first:   Descriptor{ID: 0x1f9, Name: "mode"},
			second:  Descriptor{ID: 0x1fa, Name: "mode"},
			wantErr: ErrDuplicateName,
		},
		{
			name:    "missing name",
			first:   Descriptor{ID: 0x1f9, Name: "mode"},
			second:  Descriptor{ID: 0x1fa},
			wantErr: ErrInvalidDescriptor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Registry
			if err := r.Register(tt.first); err != nil {
				t.Fatalf("Register(first) error = %v", err)
			}
			err := r.Register(tt.second)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Register(second) error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register(second) error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_DuplicatesShareParent(t *testing.T) {
	for _, err := range []error{ErrDuplicateID, ErrDuplicateName} {
		if !errors.Is(err, ErrDuplicateRegistration) {
			t.Errorf("errors.Is(%v, ErrDuplicateRegistration) = false", err)
		}
	}
}

func TestNewRegistry_Lookup(t *testing.T) {
	r, err := NewRegistry(
		Descriptor{ID: 0x1fd, Name: "current_temperature", Access: AccessRead},
		Descriptor{ID: 0x1f7, Name: "power", Access: AccessWrite},
		Descriptor{ID: 0x1f9, Name: "mode"},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}

	d, ok := r.ByID(0x1f7)
	if !ok || d.Name != "power" {
		t.Errorf("ByID(0x1f7) = %q, %v; want power, true", d.Name, ok)
	}
	d, ok = r.ByName("mode")
	if !ok || d.ID != 0x1f9 {
		t.Errorf("ByName(mode) = %s, %v; want 0x1f9, true", d.ID, ok)
	}
	if _, ok := r.ByID(0x999); ok {
		t.Error("ByID(0x999) found a descriptor")
	}
	if _, ok := r.ByName("missing"); ok {
		t.Error("ByName(missing) found a descriptor")
	}

	names := []string{}
	for _, d := range r.Descriptors() {
		names = append(names, d.Name)
	}
	want := []string{"current_temperature", "power", "mode"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Descriptors() order = %v, want %v", names, want)
	}
}

func TestNewRegistry_Sealed(t *testing.T) {
	r, err := NewRegistry(Descriptor{ID: 1, Name: "a"})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if err := r.Register(Descriptor{ID: 2, Name: "b"}); !errors.Is(err, ErrRegistrySealed) {
		t.Errorf("Register() after seal error = %v, want %v", err, ErrRegistrySealed)
	}
}

func TestNewRegistry_PropagatesDuplicate(t *testing.T) {
	_, err := NewRegistry(
		Descriptor{ID: 1, Name: "a"},
		Descriptor{ID: 1, Name: "b"},
	)
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Errorf("NewRegistry() error = %v, want %v", err, ErrDuplicateRegistration)
	}
}

func TestDescriptor_AccessDefaults(t *testing.T) {
	tests := []struct {
		access       Access
		wantReadable bool
		wantWritable bool
	}{
		{0, true, true},
		{AccessReadWrite, true, true},
		{AccessRead, true, false},
		{AccessWrite, false, true},
	}

	for _, tt := range tests {
		d := Descriptor{Access: tt.access}
		if d.Readable() != tt.wantReadable || d.Writable() != tt.wantWritable {
			t.Errorf("Access(%d): Readable() = %v, Writable() = %v; want %v, %v",
				tt.access, d.Readable(), d.Writable(), tt.wantReadable, tt.wantWritable)
		}
	}
}

func TestAttachment_Resolve(t *testing.T) {
	static := Attach(0x1fa, 0x1fe)
	if got := static.Resolve(0, false); !reflect.DeepEqual(got, []ID{0x1fa, 0x1fe}) {
		t.Errorf("static Resolve() = %v", got)
	}

	dynamic := AttachBy(func(raw int) []ID {
		if raw != 0 {
			return []ID{0x1f9, 0x1fa}
		}
		return []ID{0x1f9}
	})
	if got := dynamic.Resolve(1, true); !reflect.DeepEqual(got, []ID{0x1f9, 0x1fa}) {
		t.Errorf("dynamic Resolve(1) = %v", got)
	}
	if got := dynamic.Resolve(0, true); !reflect.DeepEqual(got, []ID{0x1f9}) {
		t.Errorf("dynamic Resolve(0) = %v", got)
	}
	if got := dynamic.Resolve(1, false); got != nil {
		t.Errorf("dynamic Resolve(unknown) = %v, want nil", got)
	}
}

func TestRegistry_StaticCycles(t *testing.T) {
	t.Run("acyclic", func(t *testing.T) {
		r, err := NewRegistry(
			Descriptor{ID: 1, Name: "a", Attach: Attach(2, 3)},
			Descriptor{ID: 2, Name: "b", Attach: Attach(3)},
			Descriptor{ID: 3, Name: "c"},
		)
		if err != nil {
			t.Fatalf("NewRegistry() error = %v", err)
		}
		if got := r.StaticCycles(); len(got) != 0 {
			t.Errorf("StaticCycles() = %v, want none", got)
		}
	})

	t.Run("mutual pair", func(t *testing.T) {
		r, err := NewRegistry(
			Descriptor{ID: 2, Name: "b", Attach: Attach(1)},
			Descriptor{ID: 1, Name: "a", Attach: Attach(2)},
		)
		if err != nil {
			t.Fatalf("NewRegistry() error = %v", err)
		}
		got := r.StaticCycles()
		want := [][]ID{{1, 2}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("StaticCycles() = %v, want %v", got, want)
		}
	})

	t.Run("dynamic edges ignored", func(t *testing.T) {
		r, err := NewRegistry(
			Descriptor{ID: 1, Name: "a", Attach: AttachBy(func(int) []ID { return []ID{2} })},
			Descriptor{ID: 2, Name: "b", Attach: Attach(1)},
		)
		if err != nil {
			t.Fatalf("NewRegistry() error = %v", err)
		}
		if got := r.StaticCycles(); len(got) != 0 {
			t.Errorf("StaticCycles() = %v, want none", got)
		}
	})
}

func TestRegistry_LongestStaticChain(t *testing.T) {
	tests := []struct {
		name string
		ds   []Descriptor
		want int
	}{
		{"no attachments", []Descriptor{{ID: 1, Name: "a"}}, 0},
		{
			"branching chain",
			[]Descriptor{
				{ID: 1, Name: "a", Attach: Attach(2, 3)},
				{ID: 2, Name: "b", Attach: Attach(3)},
				{ID: 3, Name: "c", Attach: Attach(4)},
				{ID: 4, Name: "d"},
			},
			3,
		},
		{
			"cycle edges not counted",
			[]Descriptor{
				{ID: 1, Name: "a", Attach: Attach(2)},
				{ID: 2, Name: "b", Attach: Attach(1)},
			},
			1,
		},
		{
			"dynamic attachment not counted",
			[]Descriptor{
				{ID: 1, Name: "a", Attach: AttachBy(func(int) []ID { return []ID{2} })},
				{ID: 2, Name: "b", Attach: Attach(3)},
				{ID: 3, Name: "c"},
			},
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegistry(tt.ds...)
			if err != nil {
				t.Fatalf("NewRegistry() error = %v", err)
			}
			if got := r.LongestStaticChain(); got != tt.want {
				t.Errorf("LongestStaticChain() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestID_String(t *testing.T) {
	if got := ID(0x1f9).String(); got != "0x1f9" {
		t.Errorf("String() = %q, want 0x1f9", got)
	}
	if got := ID(0x21).String(); got != "0x021" {
		t.Errorf("String() = %q, want 0x021", got)
	}
}
