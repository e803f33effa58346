package dialect

import (
	"fmt"
	"sort"

	"github.com/albertocavalcante/go-protorecon/schema"
)

// Built-in dialect names.
const (
	WebName       = "web"
	ArmadilloName = "armadillo"
)

var builtins = map[string]func() *Dialect{
	WebName:       Web,
	ArmadilloName: Armadillo,
}

// Names lists the built-in dialects.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin returns a fresh copy of a built-in dialect.
func Builtin(name string) (*Dialect, error) {
	fn, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (built-ins: %v)", ErrUnknownDialect, name, Names())
	}
	return fn(), nil
}

func fieldRenames() map[string]string {
	return map[string]string{
		"id":            "ID",
		"jid":           "JID",
		"encIv":         "encIV",
		"iv":            "IV",
		"ptt":           "PTT",
		"hmac":          "HMAC",
		"url":           "URL",
		"fbid":          "FBID",
		"jpegThumbnail": "JPEGThumbnail",
		"dsm":           "DSM",
	}
}

func fieldRewrites() []Rewrite {
	return []Rewrite{
		{Pattern: `Id([A-Zs]|$)`, Replace: "ID${1}"},
		{Pattern: `Jid`, Replace: "JID"},
		{Pattern: `Ms([A-Z]|$)`, Replace: "MS${1}"},
		{Pattern: `Ts([A-Z]|$)`, Replace: "TS${1}"},
		{Pattern: `Mac([A-Z]|$)`, Replace: "MAC${1}"},
		{Pattern: `Url`, Replace: "URL"},
		{Pattern: `Cdn`, Replace: "CDN"},
		{Pattern: `Json`, Replace: "JSON"},
		{Pattern: `Jpeg`, Replace: "JPEG"},
		{Pattern: `Sha256`, Replace: "SHA256"},
	}
}

func tableSchemaPatterns() []string {
	return []string{
		"MAWArmadillo*TableSchema.pb",
		"MAWArmadillo*TablesSchema.pb",
	}
}

func signalModules() []string {
	return []string{
		"WASignalLocalStorageProtocol.pb",
		"WASignalWhisperTextProtocol.pb",
	}
}

// Web is the dialect of the main web client bundle: lazily evaluated,
// proto2 with explicit presence labels, and a rename table collapsing the
// WAWebProtobufs* duplicates onto their canonical modules.
func Web() *Dialect {
	d := &Dialect{
		Name:             WebName,
		Description:      "Web client schema modules (proto2, go.mau.fi/whatsmeow/proto)",
		Lazy:             true,
		ConstantsModule:  "WAProtoConst",
		SchemaSuffix:     ".pb",
		TypeSuffix:       "Spec",
		NestingSeparator: "$",
		DependencyRenames: map[string]string{
			"WAProtocol.pb":                       "WACommon.pb",
			"WAWebProtobufsProtocol.pb":           "WACommon.pb",
			"WAWebProtobufsAdv.pb":                "WAAdv.pb",
			"WAWebProtobufsMmsRetry.pb":           "WAMmsRetry.pb",
			"WAWebProtobufSyncAction.pb":          "WASyncAction.pb",
			"WAWebProtobufsFingerprintV3.pb":      "WAFingerprint.pb",
			"WAWebProtobufsDeviceCapabilities.pb": "WAProtobufsDeviceCapabilities.pb",
			"WAWebProtobufsChatLockSettings.pb":   "WAProtobufsChatLockSettings.pb",
			"WAWebProtobufsUserPassword.pb":       "WAProtobufsUserPassword.pb",
		},
		Ignore: IgnoreRules{
			Keep:      []string{"WAProtoConst"},
			NonSchema: true,
			Modules: append([]string{
				"WAWebProtobufsAdv.pb",
				"WAWebProtobufsMmsRetry.pb",
				"WAWebProtobufSyncAction.pb",
				"WAWebProtobufsFingerprintV3.pb",
				"WAWebProtobufsDeviceCapabilities.pb",
				"WAWebProtobufsChatLockSettings.pb",
				"WAWebProtobufsUserPassword.pb",
				"WAProtocol.pb",
				"WAWebProtobufsProtocol.pb",
				"WAWa5.pb",
				"WAE2E.pb",
			}, signalModules()...),
			Prefixes: []string{"WAWebProtobufsMdStorage"},
			Patterns: tableSchemaPatterns(),
		},
		NestingStrips: []NestingStrip{
			{Module: "WAWebProtobufsE2E", Prefix: "Message$"},
			{Module: "WASyncAction", Prefix: "SyncActionValue$"},
		},
		Syntax:          Proto2,
		Proto3Modules:   []string{"WAWebProtobufsReporting"},
		PresenceLabels:  true,
		RepeatedInOneof: false,
		GoPackagePrefix: "go.mau.fi/whatsmeow/proto/",
		GoPackageRewrites: []Rewrite{
			{Pattern: `^WA`, Replace: "wa"},
			{Pattern: `WebProtobufs`, Replace: ""},
			{Pattern: `Protobufs`, Replace: ""},
		},
		FieldRenames:  fieldRenames(),
		FieldRewrites: fieldRewrites(),
		EnumZero:      schema.ZeroRemap,
	}
	mustValidate(d)
	return d
}

// Armadillo is the dialect of the end-to-end encrypted application
// payloads: eagerly evaluated, proto3 throughout, with the legacy
// WAProtocol message key folded into WACommon.
func Armadillo() *Dialect {
	d := &Dialect{
		Name:             ArmadilloName,
		Description:      "Armadillo application schema modules (proto3, go.mau.fi/whatsmeow/binary/armadillo)",
		Lazy:             false,
		ConstantsModule:  "WAProtoConst",
		SchemaSuffix:     ".pb",
		TypeSuffix:       "Spec",
		NestingSeparator: "$",
		Ignore: IgnoreRules{
			Keep:      []string{"WAProtoConst"},
			NonSchema: true,
			Modules:   signalModules(),
			Patterns:  tableSchemaPatterns(),
		},
		ImportRenames: map[string]string{
			"WAProtocol": "WACommon",
		},
		LegacyAliases: []LegacyAlias{
			{Module: "WAProtocol.pb", Export: "MessageKeySpec", TargetModule: "WACommon", TargetName: "MessageKey"},
		},
		Syntax:          Proto3,
		PresenceLabels:  false,
		RepeatedInOneof: true,
		GoPackagePrefix: "go.mau.fi/whatsmeow/binary/armadillo/",
		GoPackageRewrites: []Rewrite{
			{Pattern: `^WA`, Replace: "wa"},
		},
		FieldRenames:  fieldRenames(),
		FieldRewrites: fieldRewrites(),
		EnumZero:      schema.ZeroRemapOrSynthesize,
	}
	mustValidate(d)
	return d
}

func mustValidate(d *Dialect) {
	if err := d.Validate(); err != nil {
		panic(err)
	}
}
