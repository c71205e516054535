package depmodel

// CompilationOptions are the compiler switches recorded once per manifest.
// They are passed through untouched.
type CompilationOptions struct {
	Defines                  []string
	LanguageVersion          string
	Platform                 string
	AllowUnsafe              bool
	WarningsAsErrors         bool
	Optimize                 bool
	KeyFile                  string
	DelaySign                bool
	PublicSign               bool
	EmitEntryPoint           bool
	GenerateXmlDocumentation bool
}

// clone returns a copy that shares no memory with o.
func (o CompilationOptions) clone() CompilationOptions {
	out := o
	if o.Defines != nil {
		out.Defines = append([]string{}, o.Defines...)
	}
	return out
}
