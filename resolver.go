// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

// resolve runs the four ordered Resolver passes over already-built pools
// (§4.5). Each pass is a post-processing step; none of them re-reads the
// byte stream.
func (f *File) resolve() {
	f.resolveTypes()
	f.resolveInheritance()
	f.resolveExternalMethods()
	f.resolveExternalFields()
}

// externalClass returns the Class for descriptor, creating and registering
// a descriptor-only external marker if none exists yet.
func (f *File) externalClass(descriptor string) *Class {
	if cls, ok := f.Classes[descriptor]; ok {
		return cls
	}
	cls := &Class{Descriptor: descriptor, External: true}
	f.Classes[descriptor] = cls
	return cls
}

// resolveTypes is pass 1: every Type classified CLASS or array-of-CLASS is
// linked to its Class, creating an external marker when the class was
// never locally defined. It drains class_type_map (built by parseTypes),
// which is keyed exactly the way this pass needs -- by resolved class
// descriptor -- rather than re-deriving classDescriptorOf() for every Type
// a second time.
func (f *File) resolveTypes() {
	for descriptor, types := range f.classTypeMap {
		cls := f.externalClass(descriptor)
		for _, t := range types {
			t.Class = cls
		}
	}
	f.classTypeMap = map[string][]*Type{}
}

// resolveInheritance is pass 2: drain the inheritance multi-map, wiring
// each pending child's Superclass, creating the parent as external if it
// was never locally defined.
func (f *File) resolveInheritance() {
	for parentDescriptor, children := range f.inheritance {
		parent := f.externalClass(parentDescriptor)
		for _, child := range children {
			child.Superclass = parent
		}
	}
	f.inheritance = map[string][]*Class{}
}

// resolveExternalMethods is pass 3: any Method still pending in
// class_method_map was declared but never attached by a local class-data
// parse, so it belongs to an external class.
func (f *File) resolveExternalMethods() {
	for descriptor, pending := range f.classMethodMap {
		if len(pending) == 0 {
			continue
		}
		cls := f.externalClass(descriptor)
		for _, mth := range pending {
			mth.Parent = cls
			mth.External = true
			cls.Methods = append(cls.Methods, mth)
		}
	}
	f.classMethodMap = map[string][]*Method{}
}

// resolveExternalFields is pass 4, symmetric to resolveExternalMethods.
func (f *File) resolveExternalFields() {
	for descriptor, pending := range f.classFieldMap {
		if len(pending) == 0 {
			continue
		}
		cls := f.externalClass(descriptor)
		for _, fld := range pending {
			fld.Parent = cls
			fld.External = true
			cls.Fields = append(cls.Fields, fld)
		}
	}
	f.classFieldMap = map[string][]*Field{}
}
