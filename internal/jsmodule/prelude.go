package jsmodule

// stubSource evaluates to a callable proxy standing in for every module
// the sandbox does not load. Any property, call or construction yields the
// stub again, so top-level code that only wires imported helpers together
// can run. __esModule and then stay undefined so the stub is neither
// treated as an ES module namespace nor as a thenable.
const stubSource = `(function () {
  var stub;
  var target = function () {};
  stub = new Proxy(target, {
    get: function (t, prop) {
      if (prop === "__esModule" || prop === "then") return undefined;
      if (prop === Symbol.toPrimitive) return function () { return ""; };
      if (prop === "toString" || prop === "valueOf") return function () { return ""; };
      if (prop === "toJSON") return function () { return null; };
      if (prop === Symbol.iterator) return function () { return [][Symbol.iterator](); };
      return stub;
    },
    getPrototypeOf: function () { return stub; },
    apply: function () { return stub; },
    construct: function () { return stub; }
  });
  return stub;
})()`

// describeSource inspects module.exports and returns a JSON description
// matching Export. stub is the sandbox stub, undefined under deno; any
// value that is the stub is reported instead of serialised.
const describeSource = `(function (exports, stub) {
  var hasDefault = exports != null && Object.prototype.hasOwnProperty.call(exports, "default");
  var value = hasDefault ? exports["default"] : undefined;
  var kind = value === null ? "null" : typeof value;
  var stubbed = stub !== undefined && hasDefault && value === stub;
  var unresolved;
  var json;
  if (hasDefault && !stubbed && kind !== "function" && kind !== "symbol" && kind !== "undefined") {
    try {
      json = JSON.stringify(value, function (k, v) {
        if (stub !== undefined && this[k] === stub) {
          if (unresolved === undefined) unresolved = k;
          return undefined;
        }
        return typeof v === "bigint" ? v.toString() : v;
      });
    } catch (e) { json = undefined; }
  }
  return JSON.stringify({
    has_default: hasDefault,
    kind: kind,
    stubbed: stubbed || undefined,
    unresolved: unresolved,
    value: json === undefined ? undefined : JSON.parse(json)
  });
})`
