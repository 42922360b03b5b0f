package chunker

// queryTexts holds the capture queries per language. Patterns capture the
// definition node under a kind name ("function", "class", ...) and its
// identifier under @name; languages without an entry fall back to node-type
// traversal.
var queryTexts = map[string]string{
	"python": `
		(function_definition name: (identifier) @name) @function
		(class_definition name: (identifier) @name) @class
		(decorated_definition definition: (function_definition name: (identifier) @name)) @function
		(decorated_definition definition: (class_definition name: (identifier) @name)) @class
	`,
	"javascript": `
		(function_declaration name: (identifier) @name) @function
		(generator_function_declaration name: (identifier) @name) @function
		(method_definition name: (property_identifier) @name) @method
		(class_declaration name: (identifier) @name) @class
		(variable_declarator
			name: (identifier) @name
			value: [(arrow_function) (function_expression)]) @function
	`,
	"typescript": `
		(function_declaration name: (identifier) @name) @function
		(method_definition name: (property_identifier) @name) @method
		(class_declaration name: (type_identifier) @name) @class
		(interface_declaration name: (type_identifier) @name) @interface
		(type_alias_declaration name: (type_identifier) @name) @type
		(enum_declaration name: (identifier) @name) @enum
		(variable_declarator
			name: (identifier) @name
			value: [(arrow_function) (function_expression)]) @function
	`,
	"tsx": `
		(function_declaration name: (identifier) @name) @function
		(method_definition name: (property_identifier) @name) @method
		(class_declaration name: (type_identifier) @name) @class
		(interface_declaration name: (type_identifier) @name) @interface
		(type_alias_declaration name: (type_identifier) @name) @type
	`,
	"go": `
		(function_declaration name: (identifier) @name) @function
		(method_declaration name: (field_identifier) @name) @method
		(type_declaration (type_spec name: (type_identifier) @name)) @type
	`,
	"rust": `
		(function_item name: (identifier) @name) @function
		(struct_item name: (type_identifier) @name) @struct
		(enum_item name: (type_identifier) @name) @enum
		(trait_item name: (type_identifier) @name) @trait
		(impl_item) @impl
	`,
	"java": `
		(class_declaration name: (identifier) @name) @class
		(method_declaration name: (identifier) @name) @method
		(constructor_declaration name: (identifier) @name) @constructor
		(interface_declaration name: (identifier) @name) @interface
	`,
	"c": `
		(function_definition) @function
		(struct_specifier name: (type_identifier) @name) @struct
	`,
	"cpp": `
		(function_definition) @function
		(class_specifier name: (type_identifier) @name) @class
		(struct_specifier name: (type_identifier) @name) @struct
	`,
	"csharp": `
		(class_declaration name: (identifier) @name) @class
		(method_declaration name: (identifier) @name) @method
		(constructor_declaration name: (identifier) @name) @constructor
		(interface_declaration name: (identifier) @name) @interface
	`,
	"ruby": `
		(class name: (constant) @name) @class
		(method name: (identifier) @name) @method
		(singleton_method name: (identifier) @name) @method
		(module name: (constant) @name) @module
	`,
	"php": `
		(class_declaration name: (name) @name) @class
		(function_definition name: (name) @name) @function
		(method_declaration name: (name) @name) @method
	`,
	"kotlin": `
		(class_declaration) @class
		(function_declaration) @function
	`,
	"swift": `
		(class_declaration name: (type_identifier) @name) @class
		(function_declaration name: (simple_identifier) @name) @function
	`,
	"lua": `
		(function_declaration) @function
	`,
	"bash": `
		(function_definition name: (word) @name) @function
	`,
	"scala": `
		(function_definition name: (identifier) @name) @function
		(class_definition name: (identifier) @name) @class
		(object_definition name: (identifier) @name) @object
	`,
	"elixir": `
		(call target: (identifier) @name) @function
	`,
	"dockerfile": `
		(from_instruction) @from
		(run_instruction) @run
		(cmd_instruction) @cmd
	`,
	"yaml": `
		(block_mapping_pair) @pair
	`,
	"html": `
		(element) @element
		(script_element) @script
		(style_element) @style
	`,
	"css": `
		(rule_set) @rule
	`,
	"toml": `
		(table) @table
	`,
	"hcl": `
		(block) @block
	`,
	"protobuf": `
		(message) @message
		(service) @service
		(enum) @enum
	`,
	"sql": `
		(statement) @statement
	`,
}

// queryTextFor resolves the capture-query text for a language. Absence is
// valid and means "no structural query defined".
func queryTextFor(lang string) (string, bool) {
	q, ok := queryTexts[lang]
	return q, ok
}

// nodeTypes lists the node kinds worth extracting when no query is available
// (or query execution produced nothing) and the tree is walked directly.
var nodeTypes = map[string][]string{
	"python":     {"function_definition", "class_definition"},
	"javascript": {"function_declaration", "method_definition", "class_declaration", "arrow_function"},
	"typescript": {"function_declaration", "arrow_function", "method_definition", "class_declaration", "interface_declaration", "type_alias_declaration"},
	"tsx":        {"function_declaration", "method_definition", "class_declaration", "interface_declaration", "type_alias_declaration"},
	"go":         {"function_declaration", "method_declaration", "type_declaration"},
	"java":       {"class_declaration", "method_declaration", "interface_declaration"},
	"cpp":        {"function_definition", "class_specifier", "struct_specifier"},
	"c":          {"function_definition", "struct_specifier"},
	"rust":       {"function_item", "impl_item", "struct_item", "enum_item", "trait_item"},
	"csharp":     {"class_declaration", "method_declaration", "interface_declaration"},
	"ruby":       {"method", "class", "module"},
	"php":        {"function_definition", "class_declaration"},
	"kotlin":     {"class_declaration", "function_declaration"},
	"swift":      {"function_declaration", "class_declaration"},
	"lua":        {"function_declaration"},
	"bash":       {"function_definition"},
	"scala":      {"function_definition", "class_definition", "object_definition"},
	"elixir":     {"call"},
	"dockerfile": {"from_instruction", "run_instruction", "cmd_instruction"},
	"yaml":       {"block_mapping_pair"},
	"html":       {"element"},
	"css":        {"rule_set"},
	"toml":       {"table", "pair"},
	"hcl":        {"block", "attribute"},
	"protobuf":   {"message", "service"},
	"sql":        {"statement"},
	"groovy":     {"method_declaration", "class_declaration"},
	"elm":        {"value_declaration", "type_declaration", "type_alias_declaration"},
	"ocaml":      {"let_binding", "module_definition"},
	"svelte":     {"element", "script_element", "style_element"},
	"cue":        {"field"},
}

// nodeTypesFor returns the traversal node kinds for a language.
func nodeTypesFor(lang string) ([]string, bool) {
	types, ok := nodeTypes[lang]
	return types, ok
}
