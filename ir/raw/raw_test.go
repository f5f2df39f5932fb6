package raw

import "testing"

func TestCloneIsDeep(t *testing.T) {
	inner := Dict()
	inner.Set("W", NumberInt(10))
	d := Dict()
	d.Set("Inner", inner)
	d.Set("Kids", NewArray(Ref(3, 0)))

	c := Clone(d).(*DictObj)
	inner.Set("W", NumberInt(99))
	d.KV["Kids"].(*ArrayObj).Append(Ref(4, 0))

	ci, _ := c.Get("Inner")
	if w, _ := ci.(*DictObj).Int("W"); w != 10 {
		t.Fatalf("clone shares nested dict: W=%d", w)
	}
	kids, _ := c.Get("Kids")
	if kids.(*ArrayObj).Len() != 1 {
		t.Fatalf("clone shares array")
	}
}

func TestArrayInsertRemove(t *testing.T) {
	a := NewArray(NumberInt(1), NumberInt(3))
	a.Insert(1, NumberInt(2))
	a.Insert(10, NumberInt(4))
	a.Insert(-1, NumberInt(0))
	for i, it := range a.Items {
		if it.(NumberObj).Int() != int64(i) {
			t.Fatalf("item %d = %v", i, it)
		}
	}
	a.Remove(0)
	a.Remove(7)
	if a.Len() != 4 || a.Items[0].(NumberObj).Int() != 1 {
		t.Fatalf("remove failed: %v", a.Items)
	}
}

func TestDictAccessors(t *testing.T) {
	d := Dict()
	d.Set("Type", NameLiteral("Page"))
	d.Set("Rotate", NumberFloat(90))
	d.Set("Parent", Ref(2, 0))
	d.Set("EncryptMetadata", Bool(false))
	if n, ok := d.Name("Type"); !ok || n != "Page" {
		t.Fatalf("Name = %q %v", n, ok)
	}
	if r, ok := d.Int("Rotate"); !ok || r != 90 {
		t.Fatalf("Int = %d %v", r, ok)
	}
	if ref, ok := d.Ref("Parent"); !ok || ref.Num != 2 {
		t.Fatalf("Ref = %v %v", ref, ok)
	}
	if b, ok := d.Bool("EncryptMetadata"); !ok || b {
		t.Fatalf("Bool = %v %v", b, ok)
	}
	if _, ok := d.Name("Rotate"); ok {
		t.Fatalf("Name on number should fail")
	}
	if got := d.Keys(); len(got) != 4 || got[0] != "EncryptMetadata" {
		t.Fatalf("Keys = %v", got)
	}
}
