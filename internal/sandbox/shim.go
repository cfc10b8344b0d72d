package sandbox

// resultMarker separates submission output from the shim's structured result
// on stdout. Anything the submission prints appears before the marker.
const resultMarker = "===TRUESCORE_RESULT==="

// shimSource is the Python runner written into the scratch directory for each
// invocation. It loads the submission under an import allow-list with
// dangerous builtins removed, calls the entry point with JSON-decoded
// arguments, and prints a single structured result after the marker.
//
// argv: [shim.py, submission_path, entry_point, safe_imports_json, args_json]
//
// Result fields: ok (bool), result (entry point return value), error
// (traceback-free message), capability (set on a runtime capability
// violation). The shim exits 0 whenever it manages to report a result;
// anything else surfaces as a missing marker.
const shimSource = `import builtins
import json
import sys

_exec = exec
_compile = compile
_open = open
_real_import = builtins.__import__

SAFE_IMPORTS = set(json.loads(sys.argv[3]))
BLOCKED_BUILTINS = (
    "exec", "eval", "compile", "__import__", "open", "input",
    "breakpoint", "exit", "quit",
)


class CapabilityViolation(Exception):
    def __init__(self, capability):
        super().__init__(capability)
        self.capability = capability


def _guarded_import(name, *args, **kwargs):
    root = name.split(".")[0]
    if root not in SAFE_IMPORTS:
        raise CapabilityViolation("import:" + root)
    return _real_import(name, *args, **kwargs)


def _blocked(name):
    def guard(*args, **kwargs):
        raise CapabilityViolation("builtin:" + name)
    return guard


def report(payload):
    print(resultmarker)
    print(json.dumps(payload))
    sys.stdout.flush()


resultmarker = "===TRUESCORE_RESULT==="


def main():
    source = _open(sys.argv[1]).read()
    entry = sys.argv[2]
    args = json.loads(sys.argv[4])

    code = _compile(source, "submission.py", "exec")

    builtins.__import__ = _guarded_import
    for name in BLOCKED_BUILTINS:
        if name == "__import__":
            continue  # the guarded import handles allow-listed modules
        setattr(builtins, name, _blocked(name))

    namespace = {"__name__": "__submission__"}
    try:
        _exec(code, namespace)
    except CapabilityViolation as cv:
        report({"ok": False, "capability": cv.capability, "error": str(cv)})
        return
    except BaseException as exc:
        report({"ok": False, "error": "%s: %s" % (type(exc).__name__, exc)})
        return

    func = namespace.get(entry)
    if not callable(func):
        report({"ok": False, "error": "entry point %r not found" % entry})
        return

    try:
        value = func(*args)
    except CapabilityViolation as cv:
        report({"ok": False, "capability": cv.capability, "error": str(cv)})
        return
    except BaseException as exc:
        report({"ok": False, "error": "%s: %s" % (type(exc).__name__, exc)})
        return

    try:
        encoded = json.dumps(value)
    except (TypeError, ValueError):
        report({"ok": False, "error": "entry point returned a non-serializable value"})
        return

    report({"ok": True, "result": json.loads(encoded)})


main()
`
