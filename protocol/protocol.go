// Package protocol implements the gateway's line-oriented wire format.
//
// Every value travels as a single line whose first character is a type tag.
// Commands are a one-character code line followed by argument lines and a
// terminating "e" line. Replies are a single line prefixed with "!y" for
// success or "!x" for errors.
package protocol

// Value type tags.
const (
	NullType      = 'n'
	BooleanType   = 'b'
	IntegerType   = 'i'
	LongType      = 'L'
	DoubleType    = 'd'
	DecimalType   = 'D'
	StringType    = 's'
	BytesType     = 'j'
	ReferenceType = 'r'
	ArrayType     = 't'
	ProxyType     = 'f'
	VoidType      = 'v'
	PackageType   = 'p'
	ClassType     = 'c'
	MethodType    = 'm'
	NoMemberType  = 'o'
)

// Reply markers.
const (
	ReturnMessage = '!'
	Success       = 'y'
	Error         = 'x'
)

// Command codes.
const (
	CallCommand        = "c"
	ConstructorCommand = "i"
	FieldCommand       = "f"
	DirCommand         = "d"
	MemoryCommand      = "m"
	ReflectionCommand  = "r"
	ViewCommand        = "j"
	HelpCommand        = "h"
	ArrayCommand       = "a"
	AuthCommand        = "A"
	ShutdownCommand    = "s"
	CancelCommand      = "k"
)

// Sub-command codes, scoped by the command that reads them.
const (
	FieldGetSubCommand = "g"
	FieldSetSubCommand = "s"

	DirFieldsSubCommand  = "f"
	DirMethodsSubCommand = "m"
	DirStaticSubCommand  = "s"
	DirViewSubCommand    = "v"

	MemoryDeleteSubCommand = "d"

	ReflectionUnknownSubCommand = "u"
	ReflectionMemberSubCommand  = "m"
	ReflectionClassSubCommand   = "j"

	ViewCreateSubCommand = "c"
	ViewImportSubCommand = "i"
	ViewRemoveSubCommand = "r"
	ViewSearchSubCommand = "s"

	HelpObjectSubCommand = "o"
	HelpClassSubCommand  = "c"

	ArrayGetSubCommand    = "g"
	ArraySetSubCommand    = "s"
	ArrayLenSubCommand    = "l"
	ArraySliceSubCommand  = "r"
	ArrayCreateSubCommand = "c"
)

// Callback command codes sent over the reverse channel.
const (
	CallProxyCommand    = "c"
	ReleaseProxyCommand = "g"
)

const (
	// End terminates every command.
	End = "e"
	// Quit ends a connection's command loop.
	Quit = "q"
	// StaticPrefix marks a call or field target naming a class rather than an id.
	StaticPrefix = "z:"
	// ProxySeparator separates a proxy id from its interface names.
	ProxySeparator = ";"
)

// Reserved registry ids.
const (
	ServerObjectID     = "GATEWAY_SERVER"
	EntryPointObjectID = "t"
	DefaultViewID      = "j"
	ObjectIDPrefix     = "o"
)

// Preformatted replies.
const (
	VoidReply     = "!yv\n"
	NoMemberReply = "!yo\n"
	MethodReply   = "!ym\n"
)
