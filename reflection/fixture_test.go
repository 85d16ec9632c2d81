package reflection

import (
	"reflect"
	"strconv"
)

// Test fixtures: a small zoo with a class chain, two interfaces and
// overloaded statics.

type animal struct {
	name string
	legs int32
}

type dog struct {
	animal
	breed string
}

type puppy struct {
	dog
}

func newZooRegistry() *Registry {
	r := NewRegistry()

	r.MustDefine(&Class{Name: "zoo.Pet", Kind: KindInterface})
	r.MustDefine(&Class{Name: "zoo.Loud", Kind: KindInterface})

	r.MustDefine(&Class{
		Name:   "zoo.Animal",
		GoType: reflect.TypeOf(&animal{}),
		Fields: []*Field{
			{
				Name: "name", Type: StringClass,
				Get: func(recv any) any { return asAnimal(recv).name },
				Set: func(recv, v any) error { asAnimal(recv).name = v.(string); return nil },
			},
			{
				Name: "legs", Type: Int, Private: true,
				Get: func(recv any) any { return asAnimal(recv).legs },
			},
			constant("KINGDOM", StringClass, "animalia"),
		},
		Methods: []*Method{
			instance("speak", StringClass, nil, func(any, []any) (any, error) { return "...", nil }),
			instance("setLegs", Void, []string{Int}, func(recv any, args []any) (any, error) {
				asAnimal(recv).legs = args[0].(int32)
				return nil, nil
			}),
			instance("getLegs", Int, nil, func(recv any, _ []any) (any, error) { return asAnimal(recv).legs, nil }),
			{Name: "digest", Private: true, Call: func(any, []any) (any, error) { return nil, nil }},
		},
		Constructors: []*Method{
			{Params: []string{StringClass}, Call: func(_ any, args []any) (any, error) {
				return &animal{name: args[0].(string), legs: 4}, nil
			}},
		},
	})

	r.MustDefine(&Class{
		Name:       "zoo.Dog",
		Super:      "zoo.Animal",
		Interfaces: []string{"zoo.Pet", "zoo.Loud"},
		GoType:     reflect.TypeOf(&dog{}),
		Fields: []*Field{
			// Private redeclaration must not hide the public parent field.
			{Name: "name", Type: StringClass, Private: true, Get: func(any) any { return "hidden" }},
			{
				Name: "breed", Type: StringClass,
				Get: func(recv any) any { return asDog(recv).breed },
				Set: func(recv, v any) error { asDog(recv).breed = v.(string); return nil },
			},
		},
		Methods: []*Method{
			instance("speak", StringClass, nil, func(any, []any) (any, error) { return "woof", nil }),
		},
		Nested: []string{"zoo.Dog$Collar"},
	})
	r.MustDefine(&Class{Name: "zoo.Dog$Collar"})

	r.MustDefine(&Class{Name: "zoo.Puppy", Super: "zoo.Dog", GoType: reflect.TypeOf(&puppy{})})

	r.MustDefine(&Class{Name: "zoo.Empty"})

	tag := func(s string) func(any, []any) (any, error) {
		return func(any, []any) (any, error) { return s, nil }
	}
	r.MustDefine(&Class{
		Name: "zoo.Keeper",
		Methods: []*Method{
			static("describe", StringClass, []string{ObjectClass}, tag("object")),
			static("describe", StringClass, []string{StringClass}, tag("string")),
			static("describe", StringClass, []string{"zoo.Animal"}, tag("animal")),
			static("describe", StringClass, []string{"zoo.Dog"}, tag("dog")),
			static("greet", StringClass, []string{"zoo.Pet"}, tag("pet")),
			static("greet", StringClass, []string{"zoo.Loud"}, tag("loud")),
			static("count", StringClass, []string{Int, Int}, tag("fixed")),
			{
				Name: "count", Return: StringClass, Static: true, Varargs: true,
				Params: []string{Int + "[]"},
				Call: func(_ any, args []any) (any, error) {
					var total int64
					for _, v := range args[0].(*Array).Values() {
						total += int64(v.(int32))
					}
					return "varargs:" + strconv.FormatInt(total, 10), nil
				},
			},
			static("half", Double, []string{Double}, func(_ any, args []any) (any, error) {
				return args[0].(float64) / 2, nil
			}),
			static("tiny", Byte, []string{Byte}, func(_ any, args []any) (any, error) {
				return args[0], nil
			}),
			static("initial", Char, []string{Char}, func(_ any, args []any) (any, error) {
				return args[0], nil
			}),
			static("boom", Void, nil, func(any, []any) (any, error) { panic("kaboom") }),
		},
	})
	return r
}

func asAnimal(recv any) *animal {
	switch v := recv.(type) {
	case *animal:
		return v
	case *dog:
		return &v.animal
	case *puppy:
		return &v.animal
	}
	panic("not an animal")
}

func asDog(recv any) *dog {
	switch v := recv.(type) {
	case *dog:
		return v
	case *puppy:
		return &v.dog
	}
	panic("not a dog")
}
