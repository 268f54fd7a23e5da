package classfile

import (
	"fmt"
	"strings"
)

// Tag identifies a constant pool entry kind (JVMS table 4.4-A).
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

// Const is one constant pool entry. Only the fields relevant to its tag are set.
type Const struct {
	Tag              Tag
	NameIndex        uint16
	ClassIndex       uint16
	NameAndTypeIndex uint16
	DescIndex        uint16
	StringIndex      uint16
	BootstrapIndex   uint16
	RefKind          uint8
	RefIndex         uint16
	Value            int64 // Integer, Long; raw bits for Float, Double
	String           string
}

// ConstPool is indexed exactly like the class file: entry 0 and the slot
// following a Long or Double are unusable.
type ConstPool []Const

// MemberRef is a resolved field, method, interface method or call site
// reference. Class is empty for invokedynamic call sites.
type MemberRef struct {
	Tag        Tag
	Class      string
	Name       string
	Descriptor string
}

// Interface reports whether the reference targets an interface method.
func (m MemberRef) Interface() bool {
	return m.Tag == TagInterfaceMethodref
}

func (m MemberRef) String() string {
	if m.Class == "" {
		return m.Name + m.Descriptor
	}
	return m.Class + "." + m.Name + m.Descriptor
}

func (cp ConstPool) entry(index uint16, tags ...Tag) (Const, error) {
	if int(index) <= 0 || int(index) >= len(cp) || cp[index].Tag == 0 {
		return Const{}, fmt.Errorf("constant %d: %w", index, ErrBadIndex)
	}
	c := cp[index]
	for _, t := range tags {
		if c.Tag == t {
			return c, nil
		}
	}
	return Const{}, fmt.Errorf("constant %d has tag %d: %w", index, c.Tag, ErrBadIndex)
}

// Utf8 returns the string of a Utf8 entry.
func (cp ConstPool) Utf8(index uint16) (string, error) {
	c, err := cp.entry(index, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.String, nil
}

// ClassName returns the internal name of a Class entry (java/lang/Object).
func (cp ConstPool) ClassName(index uint16) (string, error) {
	c, err := cp.entry(index, TagClass)
	if err != nil {
		return "", err
	}
	return cp.Utf8(c.NameIndex)
}

// NameAndType resolves a NameAndType entry.
func (cp ConstPool) NameAndType(index uint16) (name, descriptor string, err error) {
	c, err := cp.entry(index, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = cp.Utf8(c.NameIndex); err != nil {
		return "", "", err
	}
	if descriptor, err = cp.Utf8(c.DescIndex); err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// MemberRef resolves a Fieldref, Methodref, InterfaceMethodref or
// InvokeDynamic entry.
func (cp ConstPool) MemberRef(index uint16) (MemberRef, error) {
	c, err := cp.entry(index, TagFieldref, TagMethodref, TagInterfaceMethodref, TagInvokeDynamic)
	if err != nil {
		return MemberRef{}, err
	}
	ref := MemberRef{Tag: c.Tag}
	if c.Tag != TagInvokeDynamic {
		if ref.Class, err = cp.ClassName(c.ClassIndex); err != nil {
			return MemberRef{}, err
		}
		ref.Class = strings.ReplaceAll(ref.Class, "/", ".")
	}
	if ref.Name, ref.Descriptor, err = cp.NameAndType(c.NameAndTypeIndex); err != nil {
		return MemberRef{}, err
	}
	return ref, nil
}
