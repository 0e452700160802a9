package dictionary

import "github.com/nao1215/cssfp/internal/model"

// mediaTable holds the media features that disclose something about the
// client. Keywords are lower-case.
var mediaTable = Table{
	// user preference
	{"prefers-color-scheme", model.GroupUserPreference, "color scheme (light/dark)"},
	{"prefers-reduced-motion", model.GroupUserPreference, "reduced motion preference"},
	{"prefers-contrast", model.GroupUserPreference, "contrast preference"},
	{"prefers-reduced-data", model.GroupUserPreference, "reduced data preference"},
	{"forced-colors", model.GroupUserPreference, "forced colors (OS high contrast)"},

	// input capability
	{"hover", model.GroupInputCapability, "hover capability"},
	{"any-hover", model.GroupInputCapability, "any-hover capability"},
	{"pointer", model.GroupInputCapability, "pointer accuracy"},
	{"any-pointer", model.GroupInputCapability, "any-pointer accuracy"},

	// display capability
	{"color-gamut", model.GroupDisplayCapability, "color gamut (sRGB/P3/etc.)"},
	{"dynamic-range", model.GroupDisplayCapability, "HDR dynamic range"},
	{"monochrome", model.GroupDisplayCapability, "monochrome bit depth"},
	{"resolution", model.GroupDisplayCapability, "pixel density (dpi/dppx)"},
	{"scan", model.GroupDisplayCapability, "display scan type"},
	{"color", model.GroupDisplayCapability, "device color depth"},
	{"color-index", model.GroupDisplayCapability, "color LUT size"},

	// geometry
	{"width", model.GroupGeometry, "viewport/container width"},
	{"height", model.GroupGeometry, "viewport/container height"},
	{"aspect-ratio", model.GroupGeometry, "viewport aspect ratio"},
	{"orientation", model.GroupGeometry, "screen orientation"},
	{"device-width", model.GroupGeometry, "device width (deprecated)"},
	{"device-height", model.GroupGeometry, "device height (deprecated)"},
	{"device-aspect-ratio", model.GroupGeometry, "device aspect ratio (deprecated)"},

	// app environment
	{"display-mode", model.GroupAppEnvironment, "PWA display mode"},
	{"environment-blending", model.GroupAppEnvironment, "environment blending mode"},

	// ua behavior
	{"scripting", model.GroupUABehavior, "scripting support"},
	{"update", model.GroupUABehavior, "update frequency"},
	{"overflow-block", model.GroupUABehavior, "block overflow behavior"},
	{"overflow-inline", model.GroupUABehavior, "inline overflow behavior"},

	// media type
	{"screen", model.GroupMediaType, "screen media"},
	{"print", model.GroupMediaType, "print media"},
	{"speech", model.GroupMediaType, "speech media"},
}

// supportsTable holds the @supports conditions that reveal engine support
// for a feature, and so the engine and its version.
var supportsTable = Table{
	// layout capability
	{"container-type", model.GroupLayoutCapability, "container queries support (type)"},
	{"container-name", model.GroupLayoutCapability, "container queries support (name)"},
	{"content-visibility", model.GroupLayoutCapability, "content-visibility support"},
	{"contain", model.GroupLayoutCapability, "CSS contain support"},
	{"aspect-ratio", model.GroupLayoutCapability, "aspect-ratio property support"},
	{"text-wrap", model.GroupLayoutCapability, "text-wrap support"},
	{"text-box", model.GroupLayoutCapability, "text-box properties support"},
	{"anchor-name", model.GroupLayoutCapability, "anchor positioning support"},

	// selector capability
	{"selector(:has", model.GroupSelectorCapability, ":has() selector support"},

	// graphics pipeline
	{"backdrop-filter", model.GroupGraphicsPipeline, "backdrop-filter support"},
	{"clip-path", model.GroupGraphicsPipeline, "clip-path support"},
	{"mask-image", model.GroupGraphicsPipeline, "mask-image support"},
	{"mask-border", model.GroupGraphicsPipeline, "mask-border support"},
	{"shape-outside", model.GroupGraphicsPipeline, "shape-outside support"},
	{"filter", model.GroupGraphicsPipeline, "CSS filter support"},

	// timeline capability
	{"animation-timeline", model.GroupTimelineCapability, "animation timeline support"},
	{"view-timeline", model.GroupTimelineCapability, "view timeline support"},
	{"timeline-scope", model.GroupTimelineCapability, "timeline scope support"},

	// font capability
	{"font-variation-settings", model.GroupFontCapability, "variable font support"},
	{"font-format(", model.GroupFontCapability, "font format query support"},
	{"font-tech(", model.GroupFontCapability, "font tech query support"},

	// color capability
	{"color(display-p3", model.GroupColorCapability, "display-p3 color function support"},

	// form styling
	{"accent-color", model.GroupFormStyling, "accent-color support"},

	// engine feature
	{"scrollbar-gutter", model.GroupEngineFeature, "scrollbar-gutter support"},
	{"scrollbar-width", model.GroupEngineFeature, "scrollbar-width support"},
	{"scrollbar-color", model.GroupEngineFeature, "scrollbar-color support"},

	// engine hint
	{"-webkit-appearance", model.GroupEngineHint, "WebKit-specific appearance"},
	{"-moz-appearance", model.GroupEngineHint, "Gecko-specific appearance"},
}

// containerTable holds the container query constructs.
var containerTable = Table{
	{"@container", model.GroupContainerQuery, "container query present"},
	{"container-type", model.GroupContainerQuery, "container-type used"},
	{"container-name", model.GroupContainerQuery, "container-name used"},
	{"inline-size", model.GroupContainerQuery, "inline-size query"},
	{"block-size", model.GroupContainerQuery, "block-size query"},
	{"style(", model.GroupContainerQuery, "style() query"},
}

// fontFaceTable holds the font-face descriptors that probe the client's
// fonts or font engine. Both quote styles of format() are listed.
var fontFaceTable = Table{
	{"local(", model.GroupFonts, "local font presence probe"},
	{"format('woff2')", model.GroupFonts, "font format support (woff2)"},
	{`format("woff2")`, model.GroupFonts, "font format support (woff2)"},
	{"format('woff')", model.GroupFonts, "font format support (woff)"},
	{`format("woff")`, model.GroupFonts, "font format support (woff)"},
	{"format('opentype')", model.GroupFonts, "font format support (opentype)"},
	{`format("opentype")`, model.GroupFonts, "font format support (opentype)"},
	{"format('truetype')", model.GroupFonts, "font format support (truetype)"},
	{`format("truetype")`, model.GroupFonts, "font format support (truetype)"},
	{"format('embedded-opentype')", model.GroupFonts, "font format support (eot)"},
	{`format("embedded-opentype")`, model.GroupFonts, "font format support (eot)"},
	{"format('svg')", model.GroupFonts, "font format support (svg)"},
	{`format("svg")`, model.GroupFonts, "font format support (svg)"},
}
