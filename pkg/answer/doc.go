/*
Package answer turns retrieval results into grounded answers.

Both paths share the same preparation: authorize the workspace, validate
and guard the question, retrieve and fuse chunks, and render the versioned
prompt. The buffered path returns text plus citations; the streaming path
emits a sources event, token events, and exactly one terminal done or error
event. When retrieval yields nothing the service answers with a fixed
refusal instead of letting the model invent content.
*/
package answer
