package mcp

import "github.com/mark3labs/mcp-go/mcp"

var lookupToolDef = mcp.NewTool("dict_lookup",
	mcp.WithDescription("Look up one dictionary entry by id. Returns the entry, its partition key and file, its category and every localized route."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Entry id (e.g. \"annyeong\")"),
	),
	mcp.WithString("locale",
		mcp.Description("Project the entry onto one locale (e.g. \"ko\"). Full entry when omitted."),
	),
	mcp.WithString("source",
		mcp.Description("Where to read the entry from: data (entry files, default) or db (offline database)"),
		mcp.Enum("data", "db"),
	),
)

var routeChunkToolDef = mcp.NewTool("dict_route_chunk",
	mcp.WithDescription("Compute the routes one static build job pre-renders. target=chunked selects one chunk of entry routes by chunk_index."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("target",
		mcp.Description("Build target: pages, all or chunked (default from BUILD_TARGET, else all)"),
		mcp.Enum("pages", "all", "chunked"),
	),
	mcp.WithNumber("chunk_index",
		mcp.Description("Zero-based chunk index (required for target=chunked)"),
		mcp.Min(0),
	),
	mcp.WithNumber("chunk_size",
		mcp.Description("Entries per chunk (default route_chunk_size)"),
		mcp.Min(1),
	),
	mcp.WithBoolean("include_routes",
		mcp.Description("Include the route list (default true). Set false for metadata only."),
	),
)

var metaToolDef = mcp.NewTool("dict_meta",
	mcp.WithDescription("Summarize the last build: browse chunk metadata, partition and category metadata, route chunking and the offline database run."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var verifyToolDef = mcp.NewTool("dict_verify",
	mcp.WithDescription("Compare every local partition file with the deployed copy and report entry ids missing remotely. Drift is reported, never raised."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("remote_base_url",
		mcp.Description("Deployed origin (default remote_base_url from config)"),
	),
)

var verifyLocalToolDef = mcp.NewTool("dict_verify_local",
	mcp.WithDescription("Check that every indexed entry id appears in its local partition file and its full category file."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var reloadToolDef = mcp.NewTool("dict_reload",
	mcp.WithDescription("Read the source entry and category files again so later tool calls see edits. Returns the new entry, category and partition counts."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithIdempotentHintAnnotation(true),
)
