package mcpserver

// Protocol describes the command protocol spoken by the dispatcher, for LLM
// consumers of the send_command tool.
const Protocol = `# Asterisk Command Protocol

Every command is a JSON object with a ` + "`type`" + ` field. Replies and pushes are
JSON objects with a ` + "`type`" + ` field and the payload fields next to it.

Commands act on the current scope: the active document and page of the host.
Element ids must not contain "-".

## Commands

| type | fields | replies |
|---|---|---|
| save-metadata | sourceUrl, tags, notes | save-success, save-failed |
| save-draft | sourceUrl, tags, notes | none |
| get-metadata | | no-selection, draft-loaded, metadata-loaded, new-element |
| edit-element | nodeId, selectNode | metadata-loaded, new-element, element-not-found |
| get-all-tags | | all-tags |
| get-all-elements | | all-elements |
| update-preferences | preferences | none |
| delete-asterisk | nodeId | selection-changed |
| navigate-to-node | nodeId | none (host notification) |
| resize | width, height | none |

Malformed or unknown commands are answered with ` + "`error`" + `.

## Rules

1. **save-metadata needs a selection.** Without one the reply is save-failed.
   Use edit_element with selectNode, or pass nodeId to save_metadata.
2. **Drafts shadow notes.** get-metadata returns the draft when one exists;
   edit-element always returns the saved note.
3. **Saving discards the draft.** A failed save keeps it.
4. **Tags are case-sensitive.** "UI" and "ui" are different tags.
5. **Aggregations only list live elements** of the current page. When the
   store cannot be read the reply carries an empty list and an ` + "`error`" + ` field.
6. **Resize is clamped** to 350..800 wide and 500..800 high.

## Preferences

` + "```" + `json
{
  "theme": "light",
  "autosave": true,
  "defaultSearchAction": "navigate",
  "fieldOrder": ["sourceUrl", "tags", "notes"],
  "searchFields": {"showName": true, "showNotes": true, "showTags": true, "showUrl": false}
}
` + "```" + `

theme is light or dark, defaultSearchAction is navigate or open, fieldOrder is
a permutation of the three fields. showName is always true.

## Pushes

- ` + "`selection-changed`" + `: the selection changed or an annotation was deleted.
- ` + "`context-changed`" + `: documentId, pageId, pageName after a page switch.
- ` + "`init-preferences`" + `, ` + "`context-info`" + `: sent once at startup.
- ` + "`notify`" + `: message and error flag of a host notification.

## Example

` + "```" + `json
{"type": "edit-element", "nodeId": "1:23", "selectNode": true}
{"type": "save-metadata", "sourceUrl": "https://example.com/spec", "tags": ["ui", "button"], "notes": "Primary CTA"}
` + "```" + `
`
